package mocks

import (
	"context"
	"sync"
)

// CollectionManager records collection lifecycle calls.
type CollectionManager struct {
	mu sync.Mutex

	EnsureErr error
	DeleteErr error

	// LastVectorSize is the size passed to the latest EnsureCollection.
	LastVectorSize uint64

	EnsureCollectionCallCount int
	DeleteCollectionCallCount int
}

// EnsureCollection records the vector size and returns EnsureErr.
func (m *CollectionManager) EnsureCollection(_ context.Context, vectorSize uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureCollectionCallCount++
	m.LastVectorSize = vectorSize
	return m.EnsureErr
}

// DeleteCollection returns DeleteErr.
func (m *CollectionManager) DeleteCollection(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCollectionCallCount++
	return m.DeleteErr
}
