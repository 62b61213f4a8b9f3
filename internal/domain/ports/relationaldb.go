package ports

import (
	"context"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// RelationalDB is the graph store: entities, relationships and their
// provenance. Lookups return (nil, nil) when nothing matches. Unique
// constraint violations are returned wrapping apperrors.ErrConflict.
type RelationalDB interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Entity operations

	// CreateEntity inserts a new entity.
	CreateEntity(ctx context.Context, entity *entities.Entity) error

	// UpdateEntity overwrites an existing entity's mutable fields.
	UpdateEntity(ctx context.Context, entity *entities.Entity) error

	// FindEntityByID finds an entity by its ID.
	FindEntityByID(ctx context.Context, entityID string) (*entities.Entity, error)

	// FindEntityByCanonicalName finds an entity by its canonical name.
	FindEntityByCanonicalName(ctx context.Context, campaignID, canonicalName string) (*entities.Entity, error)

	// ListEntities lists entities for a campaign with pagination.
	ListEntities(ctx context.Context, campaignID string, limit, offset int) ([]*entities.Entity, error)

	// ListAllEntities returns the full entity set of a campaign.
	ListAllEntities(ctx context.Context, campaignID string) ([]*entities.Entity, error)

	// SearchEntities searches entities by name or alias pattern.
	SearchEntities(ctx context.Context, campaignID, query string, limit int) ([]*entities.Entity, error)

	// DeleteEntity deletes an entity; relationships, sources, versions and
	// chunks cascade.
	DeleteEntity(ctx context.Context, entityID string) error

	// CountEntities returns the number of entities in a campaign.
	CountEntities(ctx context.Context, campaignID string) (int, error)

	// Relationship operations

	// SaveRelationship inserts a relationship.
	SaveRelationship(ctx context.Context, rel *entities.Relationship) error

	// FindRelationshipsByEntity finds all relationships where the entity is
	// source or target.
	FindRelationshipsByEntity(ctx context.Context, entityID string) ([]entities.Relationship, error)

	// ListRelationships returns every relationship of a campaign.
	ListRelationships(ctx context.Context, campaignID string) ([]entities.Relationship, error)

	// DeleteRelationship deletes a relationship by ID.
	DeleteRelationship(ctx context.Context, id string) error

	// FindRelatedEntities finds entity IDs connected to the given entity up to depth hops.
	FindRelatedEntities(ctx context.Context, entityID string, depth int) ([]string, error)

	// CountRelationships returns the number of relationships in a campaign.
	CountRelationships(ctx context.Context, campaignID string) (int, error)

	// Provenance

	// SaveDocument stores a source document.
	SaveDocument(ctx context.Context, doc *entities.Document) error

	// LinkEntitySource records that an entity came from a document.
	LinkEntitySource(ctx context.Context, entityID, documentID string) error

	// SaveVersion saves a new entity version; Version is assigned by the store.
	SaveVersion(ctx context.Context, version *entities.EntityVersion) error

	// FindVersionsByEntity finds all versions of an entity, newest first.
	FindVersionsByEntity(ctx context.Context, entityID string) ([]entities.EntityVersion, error)

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, campaignID, action, entityID string, details map[string]any) error

	// FindAuditLog finds audit log entries for a campaign, newest first.
	FindAuditLog(ctx context.Context, campaignID string, limit int) ([]entities.AuditEntry, error)

	// ApplyMerge persists a merge atomically: primary update, relationship
	// repointing, wikilink rewrites, version snapshots and secondary deletion.
	ApplyMerge(ctx context.Context, plan *entities.MergePlan) error

	// ApplyCommit persists a commit atomically: the document, created and
	// updated entities with their source links, version snapshots and
	// relationships. Relationships duplicating an existing (source, target,
	// type) are skipped; the number written is returned.
	ApplyCommit(ctx context.Context, plan *entities.CommitPlan) (int, error)
}
