package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

const untitledDocument = "Untitled document"

// CommitRequest is a reviewed extraction ready to be written.
type CommitRequest struct {
	CampaignID      string                        `json:"campaign_id"`
	DocumentName    string                        `json:"document_name"`
	DocumentContent string                        `json:"document_content"`
	Entities        []entities.StagedEntity       `json:"entities"`
	Relationships   []entities.StagedRelationship `json:"relationships"`
}

// CommitRequestFromStaged builds a commit request from a reviewed session.
func CommitRequestFromStaged(staged *entities.StagedExtraction) CommitRequest {
	return CommitRequest{
		CampaignID:      staged.CampaignID,
		DocumentName:    staged.SourceName,
		DocumentContent: staged.SourceText,
		Entities:        staged.Entities,
		Relationships:   staged.Relationships,
	}
}

// CommitResult enumerates what a commit wrote. Embedding failures do not fail
// the commit; they are only counted.
type CommitResult struct {
	DocumentID           string            `json:"document_id"`
	IDMap                map[string]string `json:"id_map"`
	Created              int               `json:"created"`
	Merged               int               `json:"merged"`
	Relationships        int               `json:"relationships"`
	RelationshipsSkipped int               `json:"relationships_skipped"`
	EmbeddingsSucceeded  int               `json:"embeddings_succeeded"`
	EmbeddingsFailed     int               `json:"embeddings_failed"`
}

// CommitService promotes approved staged records into the graph.
type CommitService struct {
	relationalDB ports.RelationalDB
	embeddings   *EmbeddingService
	logger       *zap.Logger
}

// NewCommitService creates a new commit service.
func NewCommitService(relationalDB ports.RelationalDB, embeddings *EmbeddingService, logger *zap.Logger) *CommitService {
	return &CommitService{
		relationalDB: relationalDB,
		embeddings:   embeddings,
		logger:       logger.Named("commit"),
	}
}

// accepted reports whether a decision lets a staged record be committed.
func accepted(d entities.Decision) (bool, error) {
	switch d.(type) {
	case entities.Approved, entities.Edited:
		return true, nil
	case entities.Pending, entities.Rejected, nil:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown review decision %T", apperrors.ErrInvalidInput, d)
	}
}

// Commit writes approved entities, a provenance document and the
// relationships whose endpoints both resolved. Canonical-name collisions are
// detected before anything is written, and the writes land in a single
// store transaction so a failed commit can be retried as is.
func (s *CommitService) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	if req.CampaignID == "" {
		return nil, fmt.Errorf("%w: campaign id is required", apperrors.ErrInvalidInput)
	}

	plan, targets, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.DocumentName)
	if name == "" {
		name = untitledDocument
	}
	commit := &entities.CommitPlan{
		Document: &entities.Document{ID: uuid.New().String(), CampaignID: req.CampaignID, Name: name, Content: req.DocumentContent},
	}

	result := &CommitResult{DocumentID: commit.Document.ID, IDMap: make(map[string]string)}
	var touched []*entities.Entity

	for _, staged := range plan {
		if staged.MergeTargetID != "" {
			target := targets[staged.MergeTargetID]
			commit.Versions = append(commit.Versions, mergeInto(target, staged))
			if !slices.Contains(commit.Updates, target) {
				commit.Updates = append(commit.Updates, target)
			}
			result.IDMap[staged.TempID] = target.ID
			result.Merged++
			touched = append(touched, target)
			continue
		}

		entity := &entities.Entity{
			ID:         uuid.New().String(),
			CampaignID: req.CampaignID,
			Name:       staged.Name,
			Type:       staged.Type,
			Content:    staged.Content,
			Aliases:    staged.Aliases,
			Tags:       staged.Tags,
		}
		commit.Creates = append(commit.Creates, entity)
		result.IDMap[staged.TempID] = entity.ID
		result.Created++
		touched = append(touched, entity)
	}

	attempted, err := planRelationships(req, commit, result)
	if err != nil {
		return nil, err
	}

	written, err := s.relationalDB.ApplyCommit(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("applying commit: %w", err)
	}
	result.Relationships = written
	result.RelationshipsSkipped += attempted - written

	s.syncAll(ctx, touched, result)

	if err := s.relationalDB.LogAction(ctx, req.CampaignID, entities.AuditCommit, "", map[string]any{
		"document_id":   commit.Document.ID,
		"created":       result.Created,
		"merged":        result.Merged,
		"relationships": result.Relationships,
	}); err != nil {
		s.logger.Warn("writing audit entry", zap.Error(err))
	}

	return result, nil
}

// validate resolves decisions and merge targets and rejects canonical-name
// collisions, both with the store and within the batch.
func (s *CommitService) validate(ctx context.Context, req CommitRequest) ([]entities.StagedEntity, map[string]*entities.Entity, error) {
	var plan []entities.StagedEntity
	targets := make(map[string]*entities.Entity)
	batch := make(map[string]string)

	for _, staged := range req.Entities {
		ok, err := accepted(staged.Decision)
		if err != nil {
			return nil, nil, fmt.Errorf("entity %s: %w", staged.TempID, err)
		}
		if !ok {
			continue
		}
		staged = staged.Resolved()

		if staged.MergeTargetID != "" {
			if _, seen := targets[staged.MergeTargetID]; !seen {
				target, err := s.relationalDB.FindEntityByID(ctx, staged.MergeTargetID)
				if err != nil {
					return nil, nil, fmt.Errorf("loading merge target: %w", err)
				}
				if target == nil {
					return nil, nil, fmt.Errorf("%w: merge target %s", apperrors.ErrNotFound, staged.MergeTargetID)
				}
				if target.CampaignID != req.CampaignID {
					return nil, nil, fmt.Errorf("%w: merge target %s belongs to another campaign", apperrors.ErrConflict, target.ID)
				}
				targets[target.ID] = target
			}
			plan = append(plan, staged)
			continue
		}

		if strings.TrimSpace(staged.Name) == "" {
			return nil, nil, fmt.Errorf("%w: entity %s has no name", apperrors.ErrInvalidInput, staged.TempID)
		}
		canonical := entities.Canonicalize(staged.Name)
		if other, dup := batch[canonical]; dup {
			return nil, nil, fmt.Errorf("%w: %q and %q share canonical name %q", apperrors.ErrConflict, other, staged.Name, canonical)
		}
		existing, err := s.relationalDB.FindEntityByCanonicalName(ctx, req.CampaignID, canonical)
		if err != nil {
			return nil, nil, fmt.Errorf("checking canonical name: %w", err)
		}
		if existing != nil {
			return nil, nil, fmt.Errorf("%w: entity %q already exists as %s", apperrors.ErrConflict, staged.Name, existing.ID)
		}
		batch[canonical] = staged.Name
		plan = append(plan, staged)
	}
	return plan, targets, nil
}

// mergeInto folds a staged entity into an existing one: content is appended,
// aliases and tags are unioned. The returned version snapshots the target as
// it was before the fold.
func mergeInto(target *entities.Entity, staged entities.StagedEntity) entities.EntityVersion {
	before := *target
	before.Aliases = slices.Clone(target.Aliases)
	before.Tags = slices.Clone(target.Tags)

	content := strings.TrimSpace(staged.Content)
	if content != "" && !strings.Contains(target.Content, content) {
		if strings.TrimSpace(target.Content) == "" {
			target.Content = content
		} else {
			target.Content += "\n\n" + content
		}
	}
	aliases := staged.Aliases
	if !strings.EqualFold(staged.Name, target.Name) {
		aliases = append([]string{staged.Name}, aliases...)
	}
	target.Aliases = excludeNames(unionFold(target.Aliases, aliases), target.Name, target.CanonicalName)
	target.Tags = unionFold(target.Tags, staged.Tags)

	return entities.EntityVersion{
		EntityID:   target.ID,
		ChangeType: entities.ChangeUpdate,
		Data:       before,
		Reason:     "commit merged " + staged.Name,
	}
}

// planRelationships adds the accepted relationships whose endpoints both
// resolved to the plan and returns how many were added.
func planRelationships(req CommitRequest, commit *entities.CommitPlan, result *CommitResult) (int, error) {
	for _, staged := range req.Relationships {
		ok, err := accepted(staged.Decision)
		if err != nil {
			return 0, fmt.Errorf("relationship %s: %w", staged.TempID, err)
		}
		if !ok {
			continue
		}
		staged = staged.Resolved()

		source := endpointID(result.IDMap, staged.SourceTempID, staged.SourceEntityID)
		target := endpointID(result.IDMap, staged.TargetTempID, staged.TargetEntityID)
		if source == "" || target == "" {
			result.RelationshipsSkipped++
			continue
		}

		commit.Relationships = append(commit.Relationships, &entities.Relationship{
			CampaignID:     req.CampaignID,
			SourceEntityID: source,
			TargetEntityID: target,
			Type:           staged.Type,
			ReverseLabel:   staged.ReverseLabel,
			DocumentID:     commit.Document.ID,
		})
	}
	return len(commit.Relationships), nil
}

// endpointID prefers the entity created or merged for a temp id.
func endpointID(idMap map[string]string, tempID, entityID string) string {
	if tempID != "" {
		return idMap[tempID]
	}
	return entityID
}

func (s *CommitService) syncAll(ctx context.Context, touched []*entities.Entity, result *CommitResult) {
	seen := make(map[string]bool)
	for _, e := range touched {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		sync, err := s.embeddings.Sync(ctx, e)
		switch {
		case err != nil:
			s.logger.Warn("syncing embeddings after commit", zap.String("entity_id", e.ID), zap.Error(err))
			result.EmbeddingsFailed++
		case sync.Disabled:
		case sync.Complete():
			result.EmbeddingsSucceeded++
		default:
			result.EmbeddingsFailed++
		}
	}
}

// excludeNames drops values equal to any of names, ignoring case.
func excludeNames(values []string, names ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		drop := false
		for _, n := range names {
			if strings.EqualFold(v, n) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, v)
		}
	}
	return out
}
