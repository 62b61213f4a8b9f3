// Package sqlite provides a SQLite implementation of the RelationalDB and
// VectorDB interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One connection: PRAGMAs are per connection and ":memory:" databases
	// are per connection too.
	db.SetMaxOpenConns(1)

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Entities (named, typed nodes; canonical name unique per campaign)
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		name TEXT NOT NULL,
		canonical_name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		aliases TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		restricted INTEGER NOT NULL DEFAULT 0,
		source_note_id TEXT,
		session_number INTEGER,
		session_date TIMESTAMP,
		session_status TEXT,
		owner_player_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(campaign_id, canonical_name)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_campaign ON entities(campaign_id);
	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(campaign_id, type);

	-- Source documents a commit was made from
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_documents_campaign ON documents(campaign_id);

	-- Directed relationships between entities
	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		source_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		target_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		reverse_label TEXT,
		document_id TEXT REFERENCES documents(id) ON DELETE SET NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_entity_id, target_entity_id, type)
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_campaign ON relationships(campaign_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_entity_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_entity_id);

	-- Which documents an entity was committed or merged from
	CREATE TABLE IF NOT EXISTS entity_sources (
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (entity_id, document_id)
	);

	-- Entity version history
	CREATE TABLE IF NOT EXISTS entity_versions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		version INTEGER NOT NULL,
		change_type TEXT NOT NULL,
		data TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(entity_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_entity_versions_entity ON entity_versions(entity_id);

	-- Embedded chunks of entity content
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		campaign_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		header_path TEXT NOT NULL DEFAULT '[]',
		mentions TEXT NOT NULL DEFAULT '[]',
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_entity ON chunks(entity_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_campaign ON chunks(campaign_id);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_campaign ON audit_log(campaign_id, created_at);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// encodeStrings stores a string slice as a JSON array, never null.
func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeStrings reads a JSON array column.
func decodeStrings(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}
