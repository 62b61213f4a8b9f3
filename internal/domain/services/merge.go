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

// MergeService collapses two entities of a campaign into one.
type MergeService struct {
	relationalDB ports.RelationalDB
	embeddings   *EmbeddingService
	logger       *zap.Logger
}

// NewMergeService creates a new merge service.
func NewMergeService(relationalDB ports.RelationalDB, embeddings *EmbeddingService, logger *zap.Logger) *MergeService {
	return &MergeService{
		relationalDB: relationalDB,
		embeddings:   embeddings,
		logger:       logger.Named("merge"),
	}
}

// Merge folds secondary into primary and returns the updated primary. The
// graph changes are written atomically by the store; removing the
// secondary's vectors and re-embedding the primary happen afterwards and
// only log on failure.
func (s *MergeService) Merge(ctx context.Context, primaryID, secondaryID string) (*entities.Entity, error) {
	if primaryID == secondaryID {
		return nil, fmt.Errorf("%w: cannot merge an entity into itself", apperrors.ErrConflict)
	}

	primary, err := s.load(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	secondary, err := s.load(ctx, secondaryID)
	if err != nil {
		return nil, err
	}
	if primary.CampaignID != secondary.CampaignID {
		return nil, fmt.Errorf("%w: entities belong to different campaigns", apperrors.ErrConflict)
	}

	all, err := s.relationalDB.ListAllEntities(ctx, primary.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	plan := BuildMergePlan(primary, secondary, all)
	if err := s.relationalDB.ApplyMerge(ctx, plan); err != nil {
		return nil, fmt.Errorf("applying merge: %w", err)
	}
	s.logger.Info("merged entities",
		zap.String("primary_id", primary.ID),
		zap.String("secondary_id", secondary.ID),
		zap.Int("rewritten", len(plan.Rewrites)))

	if err := s.embeddings.Remove(ctx, secondary.ID); err != nil {
		s.logger.Warn("removing secondary chunks", zap.String("entity_id", secondary.ID), zap.Error(err))
	}
	if _, err := s.embeddings.Sync(ctx, plan.Primary); err != nil {
		s.logger.Warn("resyncing primary", zap.String("entity_id", primary.ID), zap.Error(err))
	}

	if err := s.relationalDB.LogAction(ctx, primary.CampaignID, entities.AuditMerge, primary.ID, map[string]any{
		"secondary_id":   secondary.ID,
		"secondary_name": secondary.Name,
	}); err != nil {
		s.logger.Warn("writing audit entry", zap.Error(err))
	}

	return plan.Primary, nil
}

func (s *MergeService) load(ctx context.Context, id string) (*entities.Entity, error) {
	e, err := s.relationalDB.FindEntityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading entity %s: %w", id, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, id)
	}
	return e, nil
}

// BuildMergePlan computes every write of a merge without touching the store.
func BuildMergePlan(primary, secondary *entities.Entity, all []*entities.Entity) *entities.MergePlan {
	before := *primary
	merged := *primary

	merged.Content = mergeContent(primary.Content, secondary)

	aliases := append([]string{secondary.Name, secondary.CanonicalName}, secondary.Aliases...)
	merged.Aliases = excludeNames(unionFold(primary.Aliases, aliases), primary.Name, primary.CanonicalName)
	merged.Tags = unionFold(primary.Tags, secondary.Tags)

	oldNames := append([]string{secondary.Name, secondary.CanonicalName}, secondary.Aliases...)
	merged.Content = RewriteWikilinks(merged.Content, oldNames, primary.Name)

	var rewrites []entities.ContentRewrite
	for _, e := range all {
		if e.ID == primary.ID || e.ID == secondary.ID {
			continue
		}
		if rewritten := RewriteWikilinks(e.Content, oldNames, primary.Name); rewritten != e.Content {
			rewrites = append(rewrites, entities.ContentRewrite{EntityID: e.ID, Content: rewritten})
		}
	}

	return &entities.MergePlan{
		Primary:     &merged,
		SecondaryID: secondary.ID,
		Rewrites:    rewrites,
		Versions: []entities.EntityVersion{
			{EntityID: primary.ID, ChangeType: entities.ChangeMerge, Data: before, Reason: "merged " + secondary.Name},
			{EntityID: primary.ID, ChangeType: entities.ChangeMergedIn, Data: *secondary, Reason: "absorbed into " + primary.Name},
		},
	}
}

func mergeContent(primary string, secondary *entities.Entity) string {
	sec := strings.TrimSpace(secondary.Content)
	if sec == "" {
		return primary
	}
	separator := fmt.Sprintf("\n\n---\n\n*Merged from %s*\n\n", secondary.Name)
	return strings.TrimRight(primary, "\n") + separator + sec
}
