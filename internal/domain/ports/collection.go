// Package ports defines interfaces for external service communication.
package ports

import "context"

// CollectionManager handles vector collection lifecycle operations.
// Stores that keep chunks next to the graph have nothing to manage and
// do not implement it.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}
