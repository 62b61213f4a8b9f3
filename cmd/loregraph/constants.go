package main

// Default limits for CLI commands.
const (
	DefaultQueryLimit = 10
	DefaultListLimit  = 50
	MaxDepth          = 5
)
