// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// InitHandler prepares the stores of a fresh workspace.
type InitHandler struct {
	relationalDB      ports.RelationalDB
	collectionManager ports.CollectionManager
	vectorSize        uint64
}

// NewInitHandler creates a new init handler. collectionManager is nil when
// chunks live next to the graph.
func NewInitHandler(relationalDB ports.RelationalDB, collectionManager ports.CollectionManager, vectorSize uint64) *InitHandler {
	return &InitHandler{
		relationalDB:      relationalDB,
		collectionManager: collectionManager,
		vectorSize:        vectorSize,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	SchemaReady       bool
	CollectionCreated bool
}

// Handle creates the graph schema and, when an external chunk store is
// configured, its collection.
func (h *InitHandler) Handle(ctx context.Context) (*InitResult, error) {
	if err := h.relationalDB.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	result := &InitResult{SchemaReady: true}
	if h.collectionManager != nil {
		if err := h.collectionManager.EnsureCollection(ctx, h.vectorSize); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
		result.CollectionCreated = true
	}

	return result, nil
}
