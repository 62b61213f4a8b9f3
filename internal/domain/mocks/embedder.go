// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// Embedder is a mock implementation of ports.Embedder. EmbedFunc, when set,
// decides each answer; otherwise EmbeddingResult or Err is returned.
type Embedder struct {
	EmbeddingResult []float32
	Err             error
	EmbedFunc       func(call int, text string, task ports.EmbeddingTask) ([]float32, error)
	Dims            int

	mu        sync.Mutex
	calls     int
	lastTask  ports.EmbeddingTask
	lastTexts []string
}

// Embed returns the configured embedding or error.
func (m *Embedder) Embed(_ context.Context, text string, task ports.EmbeddingTask) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastTask = task
	m.lastTexts = append(m.lastTexts, text)
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(call, text, task)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.EmbeddingResult, nil
}

// Dimensions returns Dims, or the length of EmbeddingResult.
func (m *Embedder) Dimensions() int {
	if m.Dims > 0 {
		return m.Dims
	}
	return len(m.EmbeddingResult)
}

// CallCount returns how many times Embed was called.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastTask returns the task of the most recent call.
func (m *Embedder) LastTask() ports.EmbeddingTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTask
}

// Texts returns every embedded text in call order.
func (m *Embedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lastTexts...)
}
