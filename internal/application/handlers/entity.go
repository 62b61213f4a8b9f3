package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// EntityHandler handles entity operations at the application layer.
type EntityHandler struct {
	entityService    *services.EntityService
	mergeService     *services.MergeService
	duplicateFinder  *services.DuplicateFinder
	spotlightService *services.SpotlightService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(
	entityService *services.EntityService,
	mergeService *services.MergeService,
	duplicateFinder *services.DuplicateFinder,
	spotlightService *services.SpotlightService,
) *EntityHandler {
	return &EntityHandler{
		entityService:    entityService,
		mergeService:     mergeService,
		duplicateFinder:  duplicateFinder,
		spotlightService: spotlightService,
	}
}

// EntityListResult contains the result of listing entities. Total is the
// campaign's entity count for privileged viewers and the number of returned
// entities otherwise, so restricted entities are not revealed.
type EntityListResult struct {
	Entities []*entities.Entity `json:"entities"`
	Total    int                `json:"total"`
}

// ResyncResult summarizes a re-embedding run.
type ResyncResult struct {
	Entities []services.SyncResult `json:"entities"`
	Complete int                   `json:"complete"`
	Partial  int                   `json:"partial"`
}

// HandleList returns a page of a campaign's entities.
func (h *EntityHandler) HandleList(ctx context.Context, campaignID string, limit, offset int, privileged bool) (*EntityListResult, error) {
	list, err := h.entityService.List(ctx, campaignID, limit, offset, privileged)
	if err != nil {
		return nil, err
	}

	total := len(list)
	if privileged {
		total, err = h.entityService.Count(ctx, campaignID)
		if err != nil {
			return nil, fmt.Errorf("counting entities: %w", err)
		}
	}

	return &EntityListResult{
		Entities: list,
		Total:    total,
	}, nil
}

// HandleSearch searches entities by name or alias.
func (h *EntityHandler) HandleSearch(ctx context.Context, campaignID, query string, limit int, privileged bool) (*EntityListResult, error) {
	list, err := h.entityService.Search(ctx, campaignID, query, limit, privileged)
	if err != nil {
		return nil, err
	}

	return &EntityListResult{
		Entities: list,
		Total:    len(list),
	}, nil
}

// HandleGet returns one entity.
func (h *EntityHandler) HandleGet(ctx context.Context, entityID string, privileged bool) (*entities.Entity, error) {
	return h.entityService.Get(ctx, entityID, privileged)
}

// HandleCreate creates an entity by hand.
func (h *EntityHandler) HandleCreate(ctx context.Context, entity *entities.Entity) (*entities.Entity, error) {
	return h.entityService.Create(ctx, entity)
}

// HandleUpdate applies a partial update.
func (h *EntityHandler) HandleUpdate(ctx context.Context, entityID string, update services.EntityUpdate, reason string) (*entities.Entity, error) {
	return h.entityService.Update(ctx, entityID, update, reason)
}

// HandleDelete removes an entity, its chunks and its relationships.
func (h *EntityHandler) HandleDelete(ctx context.Context, entityID string) error {
	return h.entityService.Delete(ctx, entityID)
}

// HandleHistory returns the recorded versions of an entity, newest first.
func (h *EntityHandler) HandleHistory(ctx context.Context, entityID string) ([]entities.EntityVersion, error) {
	return h.entityService.History(ctx, entityID)
}

// HandleResync re-embeds one entity, or all of the campaign when entityID is
// empty.
func (h *EntityHandler) HandleResync(ctx context.Context, campaignID, entityID string) (*ResyncResult, error) {
	results, err := h.entityService.Resync(ctx, campaignID, entityID)
	if err != nil {
		return nil, err
	}

	out := &ResyncResult{Entities: results}
	for _, r := range results {
		if r.Complete() {
			out.Complete++
		} else {
			out.Partial++
		}
	}
	return out, nil
}

// HandleDuplicates lists existing entities whose name or alias looks like
// name.
func (h *EntityHandler) HandleDuplicates(ctx context.Context, campaignID, name string, threshold float64, privileged bool) ([]services.DuplicateCandidate, error) {
	candidates, err := h.duplicateFinder.FindPotentialDuplicates(ctx, campaignID, name, threshold)
	if err != nil {
		return nil, err
	}

	out := candidates[:0]
	for _, c := range candidates {
		if c.Entity.VisibleTo(privileged) {
			out = append(out, c)
		}
	}
	return out, nil
}

// HandleMerge folds secondary into primary.
func (h *EntityHandler) HandleMerge(ctx context.Context, primaryID, secondaryID string) (*entities.Entity, error) {
	merged, err := h.mergeService.Merge(ctx, primaryID, secondaryID)
	if err != nil {
		return nil, err
	}
	h.invalidate(ctx, merged.CampaignID)
	return merged, nil
}

// HandleSpotlight returns the campaign summary.
func (h *EntityHandler) HandleSpotlight(ctx context.Context, campaignID string, privileged bool) (*services.Spotlight, error) {
	return h.spotlightService.Get(ctx, campaignID, privileged)
}

// HandleCount returns the number of entities in a campaign.
func (h *EntityHandler) HandleCount(ctx context.Context, campaignID string) (int, error) {
	return h.entityService.Count(ctx, campaignID)
}

// invalidate drops the cached spotlight. Failures are ignored.
func (h *EntityHandler) invalidate(ctx context.Context, campaignID string) {
	if h.spotlightService == nil {
		return
	}
	_ = h.spotlightService.Invalidate(ctx, campaignID)
}
