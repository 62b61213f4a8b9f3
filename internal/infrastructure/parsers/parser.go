// Package parsers reads source documents for extraction from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawDocument is one piece of narrative text read from a file, before it is
// handed to extraction.
type RawDocument struct {
	Name    string   `json:"name" yaml:"title"`
	Content string   `json:"content" yaml:"-"`
	Session *int     `json:"session,omitempty" yaml:"session"`
	Tags    []string `json:"tags,omitempty" yaml:"tags"`
	LineNum int      `json:"-" yaml:"-"` // Position in the source file (set by parser)
}

// Parser defines the interface for reading documents from a format.
type Parser interface {
	Parse(r io.Reader) ([]RawDocument, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "markdown", "text", "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "markdown", "md", "text", "txt":
		return &MarkdownParser{}
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown", ".txt":
		return &MarkdownParser{}
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
