package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// Extractor is a mock implementation of ports.Extractor. It is safe for
// concurrent use.
type Extractor struct {
	// ExtractFunc, when set, answers each request.
	ExtractFunc func(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResponse, error)

	// Response and Err are returned when ExtractFunc is nil.
	Response *ports.ExtractionResponse
	Err      error

	mu       sync.Mutex
	requests []ports.ExtractionRequest
}

// Extract records the request and returns the configured answer.
func (m *Extractor) Extract(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response == nil {
		return &ports.ExtractionResponse{}, nil
	}
	return m.Response, nil
}

// Requests returns every request received so far.
func (m *Extractor) Requests() []ports.ExtractionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.ExtractionRequest(nil), m.requests...)
}
