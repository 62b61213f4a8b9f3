package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// RelatedEntity is an entity reached through relationships.
type RelatedEntity struct {
	EntityID string `json:"entity_id"`
	Depth    int    `json:"depth"`
}

// RelationshipService manages relationships between entities.
type RelationshipService struct {
	relationalDB ports.RelationalDB
}

// NewRelationshipService creates a new RelationshipService.
func NewRelationshipService(relationalDB ports.RelationalDB) *RelationshipService {
	return &RelationshipService{relationalDB: relationalDB}
}

// Create links two entities of the same campaign. A duplicate (source,
// target, type) is a conflict.
func (s *RelationshipService) Create(ctx context.Context, sourceID, relType, targetID, reverseLabel string) (*entities.Relationship, error) {
	relType = normalizeRelationType(relType)
	if relType == "" {
		return nil, fmt.Errorf("%w: relationship type is required", apperrors.ErrInvalidInput)
	}

	source, err := s.relationalDB.FindEntityByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("finding source entity: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source entity %s", apperrors.ErrNotFound, sourceID)
	}
	target, err := s.relationalDB.FindEntityByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("finding target entity: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: target entity %s", apperrors.ErrNotFound, targetID)
	}
	if source.CampaignID != target.CampaignID {
		return nil, fmt.Errorf("%w: entities belong to different campaigns", apperrors.ErrConflict)
	}

	rel := &entities.Relationship{
		CampaignID:     source.CampaignID,
		SourceEntityID: source.ID,
		TargetEntityID: target.ID,
		Type:           relType,
		ReverseLabel:   strings.TrimSpace(reverseLabel),
	}
	if err := s.relationalDB.SaveRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("saving relationship: %w", err)
	}
	return rel, nil
}

// Delete removes a relationship.
func (s *RelationshipService) Delete(ctx context.Context, id string) error {
	if err := s.relationalDB.DeleteRelationship(ctx, id); err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	return nil
}

// List returns all relationships for an entity.
func (s *RelationshipService) List(ctx context.Context, entityID string) ([]entities.Relationship, error) {
	return s.relationalDB.FindRelationshipsByEntity(ctx, entityID)
}

// ListWithDepth returns entities connected up to the given depth.
func (s *RelationshipService) ListWithDepth(ctx context.Context, entityID string, depth int) ([]RelatedEntity, error) {
	if depth < 1 {
		return []RelatedEntity{}, nil
	}

	ids, err := s.relationalDB.FindRelatedEntities(ctx, entityID, depth)
	if err != nil {
		return nil, fmt.Errorf("finding related entities: %w", err)
	}

	// Depth per entity is not tracked by the traversal.
	result := make([]RelatedEntity, len(ids))
	for i, id := range ids {
		result[i] = RelatedEntity{EntityID: id}
	}
	return result, nil
}

// Count returns the number of relationships in a campaign.
func (s *RelationshipService) Count(ctx context.Context, campaignID string) (int, error) {
	return s.relationalDB.CountRelationships(ctx, campaignID)
}
