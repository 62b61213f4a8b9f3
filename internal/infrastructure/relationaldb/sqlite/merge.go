package sqlite

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// ApplyMerge writes a merge in one transaction. Relationships of the
// secondary are repointed to the primary; a repointed edge that would
// duplicate an existing (source, target, type) is left on the secondary and
// removed with it. Edges between the two entities would become self-loops
// and are dropped.
func (r *Repository) ApplyMerge(ctx context.Context, plan *entities.MergePlan) error {
	if plan == nil || plan.Primary == nil {
		return fmt.Errorf("%w: empty merge plan", apperrors.ErrInvalidInput)
	}
	primaryID := plan.Primary.ID
	secondaryID := plan.SecondaryID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for i := range plan.Versions {
		if err := saveVersion(ctx, tx, &plan.Versions[i]); err != nil {
			return err
		}
	}

	if err := updateEntity(ctx, tx, plan.Primary); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE relationships SET source_entity_id = ? WHERE source_entity_id = ?`,
		primaryID, secondaryID,
	); err != nil {
		return fmt.Errorf("repointing outgoing relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE relationships SET target_entity_id = ? WHERE target_entity_id = ?`,
		primaryID, secondaryID,
	); err != nil {
		return fmt.Errorf("repointing incoming relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM relationships WHERE source_entity_id = ? AND target_entity_id = ?`,
		primaryID, primaryID,
	); err != nil {
		return fmt.Errorf("dropping self-loops: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO entity_sources (entity_id, document_id, created_at)
		 SELECT ?, document_id, created_at FROM entity_sources WHERE entity_id = ?`,
		primaryID, secondaryID,
	); err != nil {
		return fmt.Errorf("transferring sources: %w", err)
	}

	now := timeNow()
	for _, rw := range plan.Rewrites {
		if rw.EntityID == secondaryID {
			continue
		}
		if err := rewriteContent(ctx, tx, rw.EntityID, rw.Content, now); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE entity_id = ?`, secondaryID); err != nil {
		return fmt.Errorf("deleting secondary chunks: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, secondaryID)
	if err != nil {
		return fmt.Errorf("deleting secondary entity: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, secondaryID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing merge: %w", err)
	}
	return nil
}
