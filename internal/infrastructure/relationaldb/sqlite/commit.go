package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// ApplyCommit writes a commit in one transaction. Any failed entity write
// rolls back the document and every other write of the plan. Relationships
// that duplicate an existing edge are skipped.
func (r *Repository) ApplyCommit(ctx context.Context, plan *entities.CommitPlan) (int, error) {
	if plan == nil || plan.Document == nil {
		return 0, fmt.Errorf("%w: empty commit plan", apperrors.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := insertDocument(ctx, tx, plan.Document); err != nil {
		return 0, err
	}

	for _, e := range plan.Creates {
		if err := insertEntity(ctx, tx, e); err != nil {
			return 0, fmt.Errorf("creating entity %q: %w", e.Name, err)
		}
		if err := linkSource(ctx, tx, e.ID, plan.Document.ID); err != nil {
			return 0, err
		}
	}

	for i := range plan.Versions {
		if err := saveVersion(ctx, tx, &plan.Versions[i]); err != nil {
			return 0, err
		}
	}

	for _, e := range plan.Updates {
		if err := updateEntity(ctx, tx, e); err != nil {
			return 0, fmt.Errorf("updating entity %q: %w", e.Name, err)
		}
		if err := linkSource(ctx, tx, e.ID, plan.Document.ID); err != nil {
			return 0, err
		}
	}

	written := 0
	for _, rel := range plan.Relationships {
		err := insertRelationship(ctx, tx, rel)
		if errors.Is(err, apperrors.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, err
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing commit: %w", err)
	}
	return written, nil
}
