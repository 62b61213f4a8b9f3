package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// SaveVersion saves a new entity version. The version number is the next
// one for that entity.
func (r *Repository) SaveVersion(ctx context.Context, version *entities.EntityVersion) error {
	return saveVersion(ctx, r.db, version)
}

func saveVersion(ctx context.Context, q querier, version *entities.EntityVersion) error {
	data, err := json.Marshal(version.Data)
	if err != nil {
		return fmt.Errorf("marshaling entity data: %w", err)
	}
	if version.ID == "" {
		version.ID = generateUUID()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = timeNow()
	}

	err = q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM entity_versions WHERE entity_id = ?`,
		version.EntityID,
	).Scan(&version.Version)
	if err != nil {
		return fmt.Errorf("reading next version: %w", err)
	}

	query := `
		INSERT INTO entity_versions (id, entity_id, version, change_type, data, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		version.ID,
		version.EntityID,
		version.Version,
		string(version.ChangeType),
		string(data),
		version.Reason,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving entity version: %w", err)
	}
	return nil
}

// FindVersionsByEntity finds all versions of an entity, ordered by version descending.
func (r *Repository) FindVersionsByEntity(ctx context.Context, entityID string) ([]entities.EntityVersion, error) {
	query := `
		SELECT id, entity_id, version, change_type, data, reason, created_at
		FROM entity_versions
		WHERE entity_id = ?
		ORDER BY version DESC
	`
	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying entity versions: %w", err)
	}
	defer rows.Close()

	versions := make([]entities.EntityVersion, 0, 8)
	for rows.Next() {
		var v entities.EntityVersion
		var changeType, data string
		var reason sql.NullString

		if err := rows.Scan(&v.ID, &v.EntityID, &v.Version, &changeType, &data, &reason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning entity version: %w", err)
		}
		v.ChangeType = entities.ChangeType(changeType)
		v.Reason = reason.String
		if err := json.Unmarshal([]byte(data), &v.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling entity data: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, campaignID, action, entityID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO audit_log (campaign_id, action, entity_id, details, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, campaignID, action, nullString(entityID), detailsJSON, timeNow())
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for a campaign, newest first.
func (r *Repository) FindAuditLog(ctx context.Context, campaignID string, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, campaign_id, action, entity_id, details, created_at
		FROM audit_log
		WHERE campaign_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.AuditEntry, 0, limit)
	for rows.Next() {
		var entry entities.AuditEntry
		var entityID, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.CampaignID,
			&entry.Action,
			&entityID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.EntityID = entityID.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
