package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

const relationshipColumns = `id, campaign_id, source_entity_id, target_entity_id, type, reverse_label, document_id, created_at`

// SaveRelationship inserts a relationship. A duplicate (source, target, type)
// returns apperrors.ErrConflict.
func (r *Repository) SaveRelationship(ctx context.Context, rel *entities.Relationship) error {
	return insertRelationship(ctx, r.db, rel)
}

func insertRelationship(ctx context.Context, q querier, rel *entities.Relationship) error {
	if rel.ID == "" {
		rel.ID = generateUUID()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = timeNow()
	}

	query := `INSERT INTO relationships (` + relationshipColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query,
		rel.ID,
		rel.CampaignID,
		rel.SourceEntityID,
		rel.TargetEntityID,
		rel.Type,
		nullString(rel.ReverseLabel),
		nullString(rel.DocumentID),
		rel.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: relationship %s -[%s]-> %s already exists",
			apperrors.ErrConflict, rel.SourceEntityID, rel.Type, rel.TargetEntityID)
	}
	if err != nil {
		return fmt.Errorf("saving relationship: %w", err)
	}
	return nil
}

// FindRelationshipsByEntity finds all relationships where the entity is
// source or target.
func (r *Repository) FindRelationshipsByEntity(ctx context.Context, entityID string) ([]entities.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE source_entity_id = ? OR target_entity_id = ?
		ORDER BY created_at DESC
	`
	return r.queryRelationships(ctx, query, entityID, entityID)
}

// ListRelationships returns every relationship of a campaign.
func (r *Repository) ListRelationships(ctx context.Context, campaignID string) ([]entities.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE campaign_id = ?
		ORDER BY created_at ASC
	`
	return r.queryRelationships(ctx, query, campaignID)
}

// DeleteRelationship deletes a relationship by ID.
func (r *Repository) DeleteRelationship(ctx context.Context, id string) error {
	query := `DELETE FROM relationships WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: relationship %s", apperrors.ErrNotFound, id)
	}
	return nil
}

// FindRelatedEntities finds all entity IDs connected to the given entity up to the specified depth,
// following edges in either direction. Uses a recursive CTE for the traversal.
func (r *Repository) FindRelatedEntities(ctx context.Context, entityID string, depth int) ([]string, error) {
	if depth < 1 {
		return []string{}, nil
	}

	query := `
		WITH RECURSIVE related(entity_id, level) AS (
			SELECT target_entity_id, 1
			FROM relationships
			WHERE source_entity_id = ?
			UNION
			SELECT source_entity_id, 1
			FROM relationships
			WHERE target_entity_id = ?

			UNION

			SELECT r.target_entity_id, related.level + 1
			FROM relationships r
			JOIN related ON r.source_entity_id = related.entity_id
			WHERE related.level < ?
			UNION
			SELECT r.source_entity_id, related.level + 1
			FROM relationships r
			JOIN related ON r.target_entity_id = related.entity_id
			WHERE related.level < ?
		)
		SELECT DISTINCT entity_id
		FROM related
		WHERE entity_id != ?
		ORDER BY entity_id
	`

	rows, err := r.db.QueryContext(ctx, query, entityID, entityID, depth, depth, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying related entities: %w", err)
	}
	defer rows.Close()

	entityIDs := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning entity id: %w", err)
		}
		entityIDs = append(entityIDs, id)
	}
	return entityIDs, rows.Err()
}

// CountRelationships returns the number of relationships in a campaign.
func (r *Repository) CountRelationships(ctx context.Context, campaignID string) (int, error) {
	query := `SELECT COUNT(*) FROM relationships WHERE campaign_id = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, campaignID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return count, nil
}

// queryRelationships is a helper to execute relationship queries.
func (r *Repository) queryRelationships(ctx context.Context, query string, args ...any) ([]entities.Relationship, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	relationships := make([]entities.Relationship, 0, 16)
	for rows.Next() {
		var rel entities.Relationship
		var reverseLabel, documentID sql.NullString
		if err := rows.Scan(
			&rel.ID,
			&rel.CampaignID,
			&rel.SourceEntityID,
			&rel.TargetEntityID,
			&rel.Type,
			&reverseLabel,
			&documentID,
			&rel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		rel.ReverseLabel = reverseLabel.String
		rel.DocumentID = documentID.String
		relationships = append(relationships, rel)
	}
	return relationships, rows.Err()
}
