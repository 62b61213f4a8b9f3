package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

const entityColumns = `id, campaign_id, name, canonical_name, type, content, aliases, tags, restricted,
	source_note_id, session_number, session_date, session_status, owner_player_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one row selected with entityColumns.
func scanEntity(row rowScanner) (*entities.Entity, error) {
	var (
		entity                                   entities.Entity
		aliases, tags                            string
		sourceNoteID, sessionStatus, ownerPlayer sql.NullString
		sessionNumber                            sql.NullInt64
		sessionDate                              sql.NullTime
	)

	if err := row.Scan(
		&entity.ID,
		&entity.CampaignID,
		&entity.Name,
		&entity.CanonicalName,
		&entity.Type,
		&entity.Content,
		&aliases,
		&tags,
		&entity.Restricted,
		&sourceNoteID,
		&sessionNumber,
		&sessionDate,
		&sessionStatus,
		&ownerPlayer,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if entity.Aliases, err = decodeStrings(aliases); err != nil {
		return nil, fmt.Errorf("decoding aliases: %w", err)
	}
	if entity.Tags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}

	entity.SourceNoteID = sourceNoteID.String
	entity.SessionStatus = sessionStatus.String
	entity.OwnerPlayerID = ownerPlayer.String
	if sessionNumber.Valid {
		n := int(sessionNumber.Int64)
		entity.SessionNumber = &n
	}
	if sessionDate.Valid {
		d := sessionDate.Time
		entity.SessionDate = &d
	}

	return &entity, nil
}

// sessionArgs converts the optional session fields to nullable parameters.
func sessionArgs(e *entities.Entity) (sql.NullInt64, sql.NullTime) {
	var number sql.NullInt64
	if e.SessionNumber != nil {
		number = sql.NullInt64{Int64: int64(*e.SessionNumber), Valid: true}
	}
	var date sql.NullTime
	if e.SessionDate != nil {
		date = sql.NullTime{Time: *e.SessionDate, Valid: true}
	}
	return number, date
}

// CreateEntity inserts a new entity. A canonical-name collision within the
// campaign returns apperrors.ErrConflict.
func (r *Repository) CreateEntity(ctx context.Context, entity *entities.Entity) error {
	return insertEntity(ctx, r.db, entity)
}

func insertEntity(ctx context.Context, q querier, entity *entities.Entity) error {
	if entity.ID == "" {
		entity.ID = generateUUID()
	}
	if entity.CanonicalName == "" {
		entity.CanonicalName = entities.Canonicalize(entity.Name)
	}
	now := timeNow()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	aliases, err := encodeStrings(entity.Aliases)
	if err != nil {
		return fmt.Errorf("encoding aliases: %w", err)
	}
	tags, err := encodeStrings(entity.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	sessionNumber, sessionDate := sessionArgs(entity)

	query := `INSERT INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.ExecContext(ctx, query,
		entity.ID,
		entity.CampaignID,
		entity.Name,
		entity.CanonicalName,
		entity.Type,
		entity.Content,
		aliases,
		tags,
		entity.Restricted,
		nullString(entity.SourceNoteID),
		sessionNumber,
		sessionDate,
		nullString(entity.SessionStatus),
		nullString(entity.OwnerPlayerID),
		entity.CreatedAt,
		entity.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: entity %q already exists", apperrors.ErrConflict, entity.CanonicalName)
	}
	if err != nil {
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// UpdateEntity overwrites an entity's mutable fields.
func (r *Repository) UpdateEntity(ctx context.Context, entity *entities.Entity) error {
	return updateEntity(ctx, r.db, entity)
}

func updateEntity(ctx context.Context, q querier, entity *entities.Entity) error {
	entity.CanonicalName = entities.Canonicalize(entity.Name)
	entity.UpdatedAt = timeNow()

	aliases, err := encodeStrings(entity.Aliases)
	if err != nil {
		return fmt.Errorf("encoding aliases: %w", err)
	}
	tags, err := encodeStrings(entity.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	sessionNumber, sessionDate := sessionArgs(entity)

	query := `
		UPDATE entities SET
			name = ?, canonical_name = ?, type = ?, content = ?, aliases = ?, tags = ?,
			restricted = ?, source_note_id = ?, session_number = ?, session_date = ?,
			session_status = ?, owner_player_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		entity.Name,
		entity.CanonicalName,
		entity.Type,
		entity.Content,
		aliases,
		tags,
		entity.Restricted,
		nullString(entity.SourceNoteID),
		sessionNumber,
		sessionDate,
		nullString(entity.SessionStatus),
		nullString(entity.OwnerPlayerID),
		entity.UpdatedAt,
		entity.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: entity %q already exists", apperrors.ErrConflict, entity.CanonicalName)
	}
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, entity.ID)
	}
	return nil
}

// FindEntityByID finds an entity by its ID.
func (r *Repository) FindEntityByID(ctx context.Context, entityID string) (*entities.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = ?`
	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, entityID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return entity, nil
}

// FindEntityByCanonicalName finds an entity by its canonical name.
func (r *Repository) FindEntityByCanonicalName(ctx context.Context, campaignID, canonicalName string) (*entities.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE campaign_id = ? AND canonical_name = ?`
	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, campaignID, canonicalName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return entity, nil
}

// ListEntities lists entities for a campaign with pagination.
func (r *Repository) ListEntities(ctx context.Context, campaignID string, limit, offset int) ([]*entities.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE campaign_id = ?
		ORDER BY name ASC
		LIMIT ? OFFSET ?
	`
	return r.queryEntities(ctx, query, limit, campaignID, limit, offset)
}

// ListAllEntities returns every entity of a campaign.
func (r *Repository) ListAllEntities(ctx context.Context, campaignID string) ([]*entities.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE campaign_id = ? ORDER BY name ASC`
	return r.queryEntities(ctx, query, 64, campaignID)
}

// SearchEntities searches entities by name, canonical name or alias.
func (r *Repository) SearchEntities(ctx context.Context, campaignID, query string, limit int) ([]*entities.Entity, error) {
	pattern := "%" + entities.NormalizeName(query) + "%"
	canonicalPattern := "%" + entities.Canonicalize(query) + "%"
	sqlQuery := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE campaign_id = ?
		  AND (LOWER(name) LIKE ? OR canonical_name LIKE ? OR LOWER(aliases) LIKE ?)
		ORDER BY name ASC
		LIMIT ?
	`
	return r.queryEntities(ctx, sqlQuery, limit, campaignID, pattern, canonicalPattern, pattern, limit)
}

// DeleteEntity deletes an entity by ID. Relationships, sources, versions and
// chunks go with it.
func (r *Repository) DeleteEntity(ctx context.Context, entityID string) error {
	query := `DELETE FROM entities WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, entityID)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, entityID)
	}
	return nil
}

// CountEntities returns the number of entities in a campaign.
func (r *Repository) CountEntities(ctx context.Context, campaignID string) (int, error) {
	query := `SELECT COUNT(*) FROM entities WHERE campaign_id = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, campaignID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return count, nil
}

// queryEntities is a helper to execute entity queries.
func (r *Repository) queryEntities(ctx context.Context, query string, capacity int, args ...any) ([]*entities.Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	if capacity <= 0 {
		capacity = 16
	}
	result := make([]*entities.Entity, 0, capacity)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		result = append(result, entity)
	}
	return result, rows.Err()
}

// SaveDocument stores a source document.
func (r *Repository) SaveDocument(ctx context.Context, doc *entities.Document) error {
	return insertDocument(ctx, r.db, doc)
}

func insertDocument(ctx context.Context, q querier, doc *entities.Document) error {
	if doc.ID == "" {
		doc.ID = generateUUID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = timeNow()
	}

	query := `INSERT INTO documents (id, campaign_id, name, content, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query, doc.ID, doc.CampaignID, doc.Name, doc.Content, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// LinkEntitySource records that an entity came from a document. Linking
// the same pair twice is a no-op.
func (r *Repository) LinkEntitySource(ctx context.Context, entityID, documentID string) error {
	return linkSource(ctx, r.db, entityID, documentID)
}

func linkSource(ctx context.Context, q querier, entityID, documentID string) error {
	query := `INSERT OR IGNORE INTO entity_sources (entity_id, document_id, created_at) VALUES (?, ?, ?)`
	_, err := q.ExecContext(ctx, query, entityID, documentID, timeNow())
	if err != nil {
		return fmt.Errorf("linking entity source: %w", err)
	}
	return nil
}

// FindEntitySources returns the document IDs an entity was built from.
func (r *Repository) FindEntitySources(ctx context.Context, entityID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT document_id FROM entity_sources WHERE entity_id = ? ORDER BY created_at ASC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying entity sources: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 4)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rewriteContent replaces an entity's content during a merge.
func rewriteContent(ctx context.Context, q querier, entityID, content string, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE entities SET content = ?, updated_at = ? WHERE id = ?`, content, now, entityID)
	if err != nil {
		return fmt.Errorf("rewriting content of %s: %w", entityID, err)
	}
	return nil
}
