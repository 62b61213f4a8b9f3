package mocks

import (
	"context"
	"time"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// Cache is a map-backed ports.Cache that ignores ttl.
type Cache struct {
	Entries map[string]ports.CacheEntry
	GetErr  error
	SetErr  error

	GetCallCount int
	SetCallCount int
}

// NewCache creates an empty mock Cache.
func NewCache() *Cache {
	return &Cache{Entries: make(map[string]ports.CacheEntry)}
}

// Get returns the stored entry or nil.
func (m *Cache) Get(_ context.Context, key string) (*ports.CacheEntry, error) {
	m.GetCallCount++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	entry, ok := m.Entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Set stores entry.
func (m *Cache) Set(_ context.Context, key string, entry ports.CacheEntry, _ time.Duration) error {
	m.SetCallCount++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Entries[key] = entry
	return nil
}

// Delete removes key.
func (m *Cache) Delete(_ context.Context, key string) error {
	delete(m.Entries, key)
	return nil
}
