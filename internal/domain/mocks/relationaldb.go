package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// RelationalDB is an in-memory implementation of ports.RelationalDB that
// enforces the same uniqueness rules as the SQL store. Entities are copied
// in and out so callers cannot mutate stored state.
type RelationalDB struct {
	Err       error
	CreateErr error
	MergeErr  error
	CommitErr error

	mu            sync.Mutex
	entities      map[string]entities.Entity
	order         []string
	relationships []entities.Relationship
	documents     map[string]entities.Document
	sources       map[string][]string
	versions      []entities.EntityVersion
	audit         []entities.AuditEntry

	// Call tracking. CreateEntityCallCount also counts entities inserted by
	// ApplyCommit.
	CreateEntityCallCount int
	ApplyMergeCallCount   int
	ApplyCommitCallCount  int
}

// NewRelationalDB creates a new mock RelationalDB.
func NewRelationalDB() *RelationalDB {
	return &RelationalDB{
		entities:  make(map[string]entities.Entity),
		documents: make(map[string]entities.Document),
		sources:   make(map[string][]string),
	}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *RelationalDB) Close() error {
	return nil
}

func clone(e entities.Entity) *entities.Entity {
	e.Aliases = append([]string(nil), e.Aliases...)
	e.Tags = append([]string(nil), e.Tags...)
	return &e
}

func (m *RelationalDB) canonicalTaken(campaignID, canonical, exceptID string) bool {
	for id, e := range m.entities {
		if id != exceptID && e.CampaignID == campaignID && e.CanonicalName == canonical {
			return true
		}
	}
	return false
}

// CreateEntity inserts a new entity.
func (m *RelationalDB) CreateEntity(_ context.Context, entity *entities.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateEntityCallCount++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if m.Err != nil {
		return m.Err
	}

	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if entity.CanonicalName == "" {
		entity.CanonicalName = entities.Canonicalize(entity.Name)
	}
	if m.canonicalTaken(entity.CampaignID, entity.CanonicalName, "") {
		return fmt.Errorf("%w: canonical name %q", apperrors.ErrConflict, entity.CanonicalName)
	}
	now := time.Now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	m.entities[entity.ID] = *clone(*entity)
	m.order = append(m.order, entity.ID)
	return nil
}

// UpdateEntity overwrites an existing entity.
func (m *RelationalDB) UpdateEntity(_ context.Context, entity *entities.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return m.updateLocked(entity)
}

func (m *RelationalDB) updateLocked(entity *entities.Entity) error {
	if _, ok := m.entities[entity.ID]; !ok {
		return fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, entity.ID)
	}
	entity.CanonicalName = entities.Canonicalize(entity.Name)
	if m.canonicalTaken(entity.CampaignID, entity.CanonicalName, entity.ID) {
		return fmt.Errorf("%w: canonical name %q", apperrors.ErrConflict, entity.CanonicalName)
	}
	entity.UpdatedAt = time.Now()
	m.entities[entity.ID] = *clone(*entity)
	return nil
}

// FindEntityByID finds an entity by its ID.
func (m *RelationalDB) FindEntityByID(_ context.Context, entityID string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.entities[entityID]
	if !ok {
		return nil, nil
	}
	return clone(e), nil
}

// FindEntityByCanonicalName finds an entity by canonical name.
func (m *RelationalDB) FindEntityByCanonicalName(_ context.Context, campaignID, canonicalName string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, id := range m.order {
		e, ok := m.entities[id]
		if ok && e.CampaignID == campaignID && e.CanonicalName == canonicalName {
			return clone(e), nil
		}
	}
	return nil, nil
}

func (m *RelationalDB) campaignEntities(campaignID string) []*entities.Entity {
	out := []*entities.Entity{}
	for _, id := range m.order {
		if e, ok := m.entities[id]; ok && e.CampaignID == campaignID {
			out = append(out, clone(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListEntities lists entities for a campaign with pagination.
func (m *RelationalDB) ListEntities(_ context.Context, campaignID string, limit, offset int) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	all := m.campaignEntities(campaignID)
	if offset >= len(all) {
		return []*entities.Entity{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListAllEntities returns every entity of a campaign.
func (m *RelationalDB) ListAllEntities(_ context.Context, campaignID string) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.campaignEntities(campaignID), nil
}

// SearchEntities matches name, canonical name or aliases by substring.
func (m *RelationalDB) SearchEntities(_ context.Context, campaignID, query string, limit int) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	q := strings.ToLower(query)
	out := []*entities.Entity{}
	for _, e := range m.campaignEntities(campaignID) {
		hay := strings.ToLower(e.Name + " " + e.CanonicalName + " " + strings.Join(e.Aliases, " "))
		if strings.Contains(hay, q) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteEntity deletes an entity and its relationships, sources and versions.
func (m *RelationalDB) DeleteEntity(_ context.Context, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return m.deleteLocked(entityID)
}

func (m *RelationalDB) deleteLocked(entityID string) error {
	if _, ok := m.entities[entityID]; !ok {
		return fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, entityID)
	}
	delete(m.entities, entityID)
	delete(m.sources, entityID)

	rels := m.relationships[:0]
	for _, r := range m.relationships {
		if !r.Involves(entityID) {
			rels = append(rels, r)
		}
	}
	m.relationships = rels

	versions := m.versions[:0]
	for _, v := range m.versions {
		if v.EntityID != entityID {
			versions = append(versions, v)
		}
	}
	m.versions = versions
	return nil
}

// CountEntities returns the number of entities in a campaign.
func (m *RelationalDB) CountEntities(_ context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.campaignEntities(campaignID)), nil
}

func (m *RelationalDB) relationshipExists(source, target, relType, exceptID string) bool {
	for _, r := range m.relationships {
		if r.ID != exceptID && r.SourceEntityID == source && r.TargetEntityID == target && r.Type == relType {
			return true
		}
	}
	return false
}

// SaveRelationship inserts a relationship.
func (m *RelationalDB) SaveRelationship(_ context.Context, rel *entities.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.entities[rel.SourceEntityID]; !ok {
		return fmt.Errorf("saving relationship: unknown source %s", rel.SourceEntityID)
	}
	if _, ok := m.entities[rel.TargetEntityID]; !ok {
		return fmt.Errorf("saving relationship: unknown target %s", rel.TargetEntityID)
	}
	if m.relationshipExists(rel.SourceEntityID, rel.TargetEntityID, rel.Type, "") {
		return fmt.Errorf("%w: relationship already exists", apperrors.ErrConflict)
	}
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	m.relationships = append(m.relationships, *rel)
	return nil
}

// FindRelationshipsByEntity finds relationships touching an entity.
func (m *RelationalDB) FindRelationshipsByEntity(_ context.Context, entityID string) ([]entities.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []entities.Relationship{}
	for _, r := range m.relationships {
		if r.Involves(entityID) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRelationships returns every relationship of a campaign.
func (m *RelationalDB) ListRelationships(_ context.Context, campaignID string) ([]entities.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []entities.Relationship{}
	for _, r := range m.relationships {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteRelationship deletes a relationship by ID.
func (m *RelationalDB) DeleteRelationship(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, r := range m.relationships {
		if r.ID == id {
			m.relationships = append(m.relationships[:i], m.relationships[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: relationship %s", apperrors.ErrNotFound, id)
}

// FindRelatedEntities walks relationships in both directions up to depth.
func (m *RelationalDB) FindRelatedEntities(_ context.Context, entityID string, depth int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	seen := map[string]bool{entityID: true}
	frontier := []string{entityID}
	var out []string
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			for _, r := range m.relationships {
				var other string
				switch id {
				case r.SourceEntityID:
					other = r.TargetEntityID
				case r.TargetEntityID:
					other = r.SourceEntityID
				default:
					continue
				}
				if !seen[other] {
					seen[other] = true
					out = append(out, other)
					next = append(next, other)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

// CountRelationships returns the number of relationships in a campaign.
func (m *RelationalDB) CountRelationships(ctx context.Context, campaignID string) (int, error) {
	rels, err := m.ListRelationships(ctx, campaignID)
	return len(rels), err
}

// SaveDocument stores a source document.
func (m *RelationalDB) SaveDocument(_ context.Context, doc *entities.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	m.documents[doc.ID] = *doc
	return nil
}

// Documents returns every stored document.
func (m *RelationalDB) Documents() []entities.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Document, 0, len(m.documents))
	for _, d := range m.documents {
		out = append(out, d)
	}
	return out
}

// LinkEntitySource records that an entity came from a document.
func (m *RelationalDB) LinkEntitySource(_ context.Context, entityID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, d := range m.sources[entityID] {
		if d == documentID {
			return nil
		}
	}
	m.sources[entityID] = append(m.sources[entityID], documentID)
	return nil
}

// Sources returns the document ids linked to an entity.
func (m *RelationalDB) Sources(entityID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources[entityID]...)
}

// SaveVersion saves a new entity version.
func (m *RelationalDB) SaveVersion(_ context.Context, version *entities.EntityVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.saveVersionLocked(version)
	return nil
}

func (m *RelationalDB) saveVersionLocked(version *entities.EntityVersion) {
	next := 1
	for _, v := range m.versions {
		if v.EntityID == version.EntityID && v.Version >= next {
			next = v.Version + 1
		}
	}
	version.Version = next
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}
	m.versions = append(m.versions, *version)
}

// FindVersionsByEntity returns versions newest first.
func (m *RelationalDB) FindVersionsByEntity(_ context.Context, entityID string) ([]entities.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []entities.EntityVersion{}
	for _, v := range m.versions {
		if v.EntityID == entityID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// LogAction appends an audit entry.
func (m *RelationalDB) LogAction(_ context.Context, campaignID, action, entityID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.audit = append(m.audit, entities.AuditEntry{
		ID:         int64(len(m.audit) + 1),
		CampaignID: campaignID,
		Action:     action,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now(),
	})
	return nil
}

// FindAuditLog returns a campaign's audit entries newest first.
func (m *RelationalDB) FindAuditLog(_ context.Context, campaignID string, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []entities.AuditEntry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		if m.audit[i].CampaignID == campaignID {
			out = append(out, m.audit[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ApplyMerge applies a merge plan. With MergeErr set nothing is changed.
func (m *RelationalDB) ApplyMerge(_ context.Context, plan *entities.MergePlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ApplyMergeCallCount++
	if m.MergeErr != nil {
		return m.MergeErr
	}
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.entities[plan.SecondaryID]; !ok {
		return fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, plan.SecondaryID)
	}

	for i := range plan.Versions {
		m.saveVersionLocked(&plan.Versions[i])
	}
	if err := m.updateLocked(plan.Primary); err != nil {
		return err
	}

	primaryID := plan.Primary.ID
	for i, r := range m.relationships {
		source, target := r.SourceEntityID, r.TargetEntityID
		if source == plan.SecondaryID {
			source = primaryID
		}
		if target == plan.SecondaryID {
			target = primaryID
		}
		if (source != r.SourceEntityID || target != r.TargetEntityID) && !m.relationshipExists(source, target, r.Type, r.ID) {
			m.relationships[i].SourceEntityID = source
			m.relationships[i].TargetEntityID = target
		}
	}
	rels := m.relationships[:0]
	for _, r := range m.relationships {
		if r.SourceEntityID != primaryID || r.TargetEntityID != primaryID {
			rels = append(rels, r)
		}
	}
	m.relationships = rels

	for _, d := range m.sources[plan.SecondaryID] {
		found := false
		for _, existing := range m.sources[primaryID] {
			found = found || existing == d
		}
		if !found {
			m.sources[primaryID] = append(m.sources[primaryID], d)
		}
	}

	for _, rw := range plan.Rewrites {
		if e, ok := m.entities[rw.EntityID]; ok && rw.EntityID != plan.SecondaryID {
			e.Content = rw.Content
			m.entities[rw.EntityID] = e
		}
	}

	return m.deleteLocked(plan.SecondaryID)
}

// ApplyCommit applies a commit plan. The plan is checked in full before
// anything is stored, so a failing plan leaves no trace.
func (m *RelationalDB) ApplyCommit(_ context.Context, plan *entities.CommitPlan) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ApplyCommitCallCount++
	if m.CommitErr != nil {
		return 0, m.CommitErr
	}
	if len(plan.Creates) > 0 && m.CreateErr != nil {
		return 0, m.CreateErr
	}
	if m.Err != nil {
		return 0, m.Err
	}

	known := make(map[string]bool)
	batch := make(map[string]bool)
	for _, e := range plan.Creates {
		if e.CanonicalName == "" {
			e.CanonicalName = entities.Canonicalize(e.Name)
		}
		if batch[e.CanonicalName] || m.canonicalTaken(e.CampaignID, e.CanonicalName, "") {
			return 0, fmt.Errorf("creating entity %q: %w: canonical name %q", e.Name, apperrors.ErrConflict, e.CanonicalName)
		}
		batch[e.CanonicalName] = true
		known[e.ID] = true
	}
	for _, e := range plan.Updates {
		if _, ok := m.entities[e.ID]; !ok {
			return 0, fmt.Errorf("updating entity %q: %w: entity %s", e.Name, apperrors.ErrNotFound, e.ID)
		}
		if m.canonicalTaken(e.CampaignID, entities.Canonicalize(e.Name), e.ID) {
			return 0, fmt.Errorf("updating entity %q: %w", e.Name, apperrors.ErrConflict)
		}
	}
	for _, r := range plan.Relationships {
		for _, id := range []string{r.SourceEntityID, r.TargetEntityID} {
			if _, ok := m.entities[id]; !ok && !known[id] {
				return 0, fmt.Errorf("saving relationship: unknown entity %s", id)
			}
		}
	}

	doc := plan.Document
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	m.documents[doc.ID] = *doc

	link := func(entityID string) {
		for _, d := range m.sources[entityID] {
			if d == doc.ID {
				return
			}
		}
		m.sources[entityID] = append(m.sources[entityID], doc.ID)
	}

	now := time.Now()
	for _, e := range plan.Creates {
		m.CreateEntityCallCount++
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		m.entities[e.ID] = *clone(*e)
		m.order = append(m.order, e.ID)
		link(e.ID)
	}
	for i := range plan.Versions {
		m.saveVersionLocked(&plan.Versions[i])
	}
	for _, e := range plan.Updates {
		if err := m.updateLocked(e); err != nil {
			return 0, err
		}
		link(e.ID)
	}

	written := 0
	for _, r := range plan.Relationships {
		if m.relationshipExists(r.SourceEntityID, r.TargetEntityID, r.Type, "") {
			continue
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		m.relationships = append(m.relationships, *r)
		written++
	}
	return written, nil
}

// AuditLog returns every audit entry in insertion order.
func (m *RelationalDB) AuditLog() []entities.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.AuditEntry(nil), m.audit...)
}
