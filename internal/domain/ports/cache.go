package ports

import (
	"context"
	"time"
)

// CacheEntry is a cached value with what is needed to decide freshness.
type CacheEntry struct {
	Value       []byte    `json:"value"`
	InsertedAt  time.Time `json:"inserted_at"`
	Fingerprint string    `json:"fingerprint"`
}

// Cache is a key/value store shared by every process serving a campaign.
// Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
