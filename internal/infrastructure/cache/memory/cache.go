// Package memory provides an in-process Cache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

type item struct {
	entry     ports.CacheEntry
	expiresAt time.Time
}

// Cache is a mutex-guarded map with per-key expiry. Expired keys are
// dropped lazily on read.
type Cache struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		items: make(map[string]item),
		now:   time.Now,
	}
}

// Get returns the entry for key, or nil when absent or expired.
func (c *Cache) Get(_ context.Context, key string) (*ports.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	if !it.expiresAt.IsZero() && !c.now().Before(it.expiresAt) {
		delete(c.items, key)
		return nil, nil
	}
	entry := it.entry
	return &entry, nil
}

// Set stores entry under key. A zero ttl never expires.
func (c *Cache) Set(_ context.Context, key string, entry ports.CacheEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	it := item{entry: entry}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = it
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}
