package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

type entityLookup interface {
	HandleGet(ctx context.Context, entityID string, privileged bool) (*entities.Entity, error)
	HandleSearch(ctx context.Context, campaignID, query string, limit int, privileged bool) (*handlers.EntityListResult, error)
}

// resolveEntity accepts an entity ID, a name or an alias. Exact name and
// alias matches win over a single partial match.
func resolveEntity(ctx context.Context, lookup entityLookup, campaignID, ref string) (*entities.Entity, error) {
	if e, err := lookup.HandleGet(ctx, ref, true); err == nil && e.CampaignID == campaignID {
		return e, nil
	}

	result, err := lookup.HandleSearch(ctx, campaignID, ref, DefaultListLimit, true)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}

	canonical := entities.Canonicalize(ref)
	for _, e := range result.Entities {
		if e.CanonicalName == canonical || e.HasAlias(ref) {
			return e, nil
		}
	}

	switch len(result.Entities) {
	case 0:
		return nil, fmt.Errorf("%w: no entity named %q", apperrors.ErrNotFound, ref)
	case 1:
		return result.Entities[0], nil
	default:
		names := make([]string, 0, len(result.Entities))
		for _, e := range result.Entities {
			names = append(names, e.Name)
		}
		return nil, fmt.Errorf("%w: %q is ambiguous (%s)", apperrors.ErrInvalidInput, ref, strings.Join(names, ", "))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
