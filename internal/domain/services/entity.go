package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// DefaultListLimit is the page size of entity listings.
const DefaultListLimit = 50

// EntityUpdate is a partial update; nil fields are left unchanged.
type EntityUpdate struct {
	Name       *string   `json:"name,omitempty"`
	Type       *string   `json:"type,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Aliases    *[]string `json:"aliases,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Restricted *bool     `json:"restricted,omitempty"`
}

// EntityService manages entity operations.
type EntityService struct {
	relationalDB ports.RelationalDB
	embeddings   *EmbeddingService
	logger       *zap.Logger
}

// NewEntityService creates a new EntityService.
func NewEntityService(relationalDB ports.RelationalDB, embeddings *EmbeddingService, logger *zap.Logger) *EntityService {
	return &EntityService{
		relationalDB: relationalDB,
		embeddings:   embeddings,
		logger:       logger.Named("entity"),
	}
}

// Create stores a new entity and embeds its content.
func (s *EntityService) Create(ctx context.Context, entity *entities.Entity) (*entities.Entity, error) {
	entity.Name = strings.TrimSpace(entity.Name)
	if entity.CampaignID == "" || entity.Name == "" {
		return nil, fmt.Errorf("%w: campaign id and name are required", apperrors.ErrInvalidInput)
	}
	if entity.Type == "" {
		entity.Type = "lore"
	}
	entity.CanonicalName = entities.Canonicalize(entity.Name)

	if err := s.relationalDB.CreateEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("creating entity: %w", err)
	}
	s.sync(ctx, entity)
	return entity, nil
}

// Get returns an entity. Restricted entities are reported as not found to
// viewers without privilege.
func (s *EntityService) Get(ctx context.Context, entityID string, privileged bool) (*entities.Entity, error) {
	e, err := s.relationalDB.FindEntityByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("finding entity: %w", err)
	}
	if e == nil || !e.VisibleTo(privileged) {
		return nil, fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, entityID)
	}
	return e, nil
}

// List returns a page of a campaign's entities visible to the viewer.
func (s *EntityService) List(ctx context.Context, campaignID string, limit, offset int, privileged bool) ([]*entities.Entity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	list, err := s.relationalDB.ListEntities(ctx, campaignID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return visible(list, privileged), nil
}

// Search finds entities by name or alias.
func (s *EntityService) Search(ctx context.Context, campaignID, query string, limit int, privileged bool) ([]*entities.Entity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	list, err := s.relationalDB.SearchEntities(ctx, campaignID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	return visible(list, privileged), nil
}

// Update applies a partial update and records the previous state as a version.
// Embeddings are regenerated when name, content or visibility change.
func (s *EntityService) Update(ctx context.Context, entityID string, update EntityUpdate, reason string) (*entities.Entity, error) {
	e, err := s.Get(ctx, entityID, true)
	if err != nil {
		return nil, err
	}
	before := *e

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", apperrors.ErrInvalidInput)
		}
		e.Name = name
		e.CanonicalName = entities.Canonicalize(name)
	}
	if update.Type != nil {
		e.Type = *update.Type
	}
	if update.Content != nil {
		e.Content = *update.Content
	}
	if update.Aliases != nil {
		e.Aliases = excludeNames(unionFold(nil, *update.Aliases), e.Name)
	}
	if update.Tags != nil {
		e.Tags = unionFold(nil, *update.Tags)
	}
	if update.Restricted != nil {
		e.Restricted = *update.Restricted
	}

	if err := s.relationalDB.UpdateEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("updating entity: %w", err)
	}
	if err := s.relationalDB.SaveVersion(ctx, &entities.EntityVersion{
		EntityID:   e.ID,
		ChangeType: entities.ChangeUpdate,
		Data:       before,
		Reason:     reason,
	}); err != nil {
		return nil, fmt.Errorf("saving version: %w", err)
	}

	if e.Content != before.Content || e.Name != before.Name || e.Type != before.Type || e.Restricted != before.Restricted {
		s.sync(ctx, e)
	}
	s.audit(ctx, e.CampaignID, entities.AuditUpdate, e.ID, map[string]any{"reason": reason})
	return e, nil
}

// Delete removes an entity, its chunks, relationships and history.
func (s *EntityService) Delete(ctx context.Context, entityID string) error {
	e, err := s.Get(ctx, entityID, true)
	if err != nil {
		return err
	}
	if err := s.embeddings.Remove(ctx, e.ID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if err := s.relationalDB.DeleteEntity(ctx, e.ID); err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	s.audit(ctx, e.CampaignID, entities.AuditDelete, e.ID, map[string]any{"name": e.Name})
	return nil
}

// History returns an entity's versions, newest first.
func (s *EntityService) History(ctx context.Context, entityID string) ([]entities.EntityVersion, error) {
	return s.relationalDB.FindVersionsByEntity(ctx, entityID)
}

// Resync re-embeds one entity, or every entity of the campaign when entityID
// is empty.
func (s *EntityService) Resync(ctx context.Context, campaignID, entityID string) ([]SyncResult, error) {
	var targets []*entities.Entity
	if entityID != "" {
		e, err := s.Get(ctx, entityID, true)
		if err != nil {
			return nil, err
		}
		targets = []*entities.Entity{e}
	} else {
		all, err := s.relationalDB.ListAllEntities(ctx, campaignID)
		if err != nil {
			return nil, fmt.Errorf("listing entities: %w", err)
		}
		targets = all
	}

	results := make([]SyncResult, 0, len(targets))
	for _, e := range targets {
		r, err := s.embeddings.Sync(ctx, e)
		if err != nil {
			return results, fmt.Errorf("syncing %s: %w", e.Name, err)
		}
		results = append(results, *r)
	}
	return results, nil
}

// Count returns the number of entities in a campaign.
func (s *EntityService) Count(ctx context.Context, campaignID string) (int, error) {
	return s.relationalDB.CountEntities(ctx, campaignID)
}

func (s *EntityService) sync(ctx context.Context, e *entities.Entity) {
	if _, err := s.embeddings.Sync(ctx, e); err != nil {
		s.logger.Warn("syncing embeddings", zap.String("entity_id", e.ID), zap.Error(err))
	}
}

func (s *EntityService) audit(ctx context.Context, campaignID, action, entityID string, details map[string]any) {
	if err := s.relationalDB.LogAction(ctx, campaignID, action, entityID, details); err != nil {
		s.logger.Warn("writing audit entry", zap.String("action", action), zap.Error(err))
	}
}

func visible(list []*entities.Entity, privileged bool) []*entities.Entity {
	if privileged {
		return list
	}
	out := make([]*entities.Entity, 0, len(list))
	for _, e := range list {
		if e.VisibleTo(false) {
			out = append(out, e)
		}
	}
	return out
}
