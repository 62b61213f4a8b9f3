package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// RelationshipHandler handles relationship operations.
type RelationshipHandler struct {
	service      *services.RelationshipService
	relationalDB ports.RelationalDB
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(service *services.RelationshipService, relationalDB ports.RelationalDB) *RelationshipHandler {
	return &RelationshipHandler{
		service:      service,
		relationalDB: relationalDB,
	}
}

// ListOptions configures relationship listing behavior.
type ListOptions struct {
	Type       string // Filter by relationship type (empty = all)
	Depth      int    // Graph traversal depth (default 1)
	Privileged bool
}

// RelationshipInfo contains a relationship with its endpoint entities.
type RelationshipInfo struct {
	Relationship entities.Relationship `json:"relationship"`
	Source       *entities.Entity      `json:"source,omitempty"`
	Target       *entities.Entity      `json:"target,omitempty"`
}

// ListResult contains the result of listing relationships. Related holds the
// entities reachable within Depth hops when Depth is above one.
type ListResult struct {
	Relationships []RelationshipInfo `json:"relationships"`
	Related       []*entities.Entity `json:"related,omitempty"`
}

// HandleCreate creates a new relationship between two entities.
func (h *RelationshipHandler) HandleCreate(ctx context.Context, sourceID, relType, targetID, reverseLabel string) (*entities.Relationship, error) {
	return h.service.Create(ctx, sourceID, relType, targetID, reverseLabel)
}

// HandleDelete removes a relationship by ID.
func (h *RelationshipHandler) HandleDelete(ctx context.Context, id string) error {
	return h.service.Delete(ctx, id)
}

// HandleList returns relationships of an entity with optional filtering.
// Relationships touching an entity the viewer may not see are left out.
func (h *RelationshipHandler) HandleList(ctx context.Context, entityID string, opts ListOptions) (*ListResult, error) {
	relationships, err := h.service.List(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}

	if opts.Type != "" {
		filtered := make([]entities.Relationship, 0, len(relationships))
		for i := range relationships {
			if relationships[i].Type == opts.Type {
				filtered = append(filtered, relationships[i])
			}
		}
		relationships = filtered
	}

	known := make(map[string]*entities.Entity)
	lookup := func(id string) (*entities.Entity, error) {
		if e, ok := known[id]; ok {
			return e, nil
		}
		e, err := h.relationalDB.FindEntityByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching entity %s: %w", id, err)
		}
		known[id] = e
		return e, nil
	}
	visible := func(e *entities.Entity) bool {
		return e != nil && e.VisibleTo(opts.Privileged)
	}

	result := &ListResult{
		Relationships: make([]RelationshipInfo, 0, len(relationships)),
	}

	for i := range relationships {
		source, err := lookup(relationships[i].SourceEntityID)
		if err != nil {
			return nil, err
		}
		target, err := lookup(relationships[i].TargetEntityID)
		if err != nil {
			return nil, err
		}
		if !visible(source) || !visible(target) {
			continue
		}
		result.Relationships = append(result.Relationships, RelationshipInfo{
			Relationship: relationships[i],
			Source:       source,
			Target:       target,
		})
	}

	if opts.Depth > 1 {
		related, err := h.service.ListWithDepth(ctx, entityID, opts.Depth)
		if err != nil {
			return nil, err
		}
		for _, r := range related {
			e, err := lookup(r.EntityID)
			if err != nil {
				return nil, err
			}
			if visible(e) {
				result.Related = append(result.Related, e)
			}
		}
	}

	return result, nil
}

// HandleCount returns the number of relationships in a campaign.
func (h *RelationshipHandler) HandleCount(ctx context.Context, campaignID string) (int, error) {
	return h.service.Count(ctx, campaignID)
}
