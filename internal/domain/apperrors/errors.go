// Package apperrors holds the sentinel errors shared across layers.
// Wrap them with fmt.Errorf("...: %w", ErrX) and match with errors.Is.
package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRateLimited      = errors.New("rate limited")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)
