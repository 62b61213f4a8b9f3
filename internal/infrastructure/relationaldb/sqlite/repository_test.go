package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

const testCampaign = "campaign-1"

// setupTestRepo creates an in-memory SQLite repository for testing.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	err = repo.EnsureSchema(context.Background())
	require.NoError(t, err)

	return repo
}

// createEntity inserts an entity with the given name into testCampaign.
func createEntity(t *testing.T, repo *Repository, name string, mutate ...func(*entities.Entity)) *entities.Entity {
	t.Helper()
	e := &entities.Entity{
		CampaignID: testCampaign,
		Name:       name,
		Type:       "npc",
	}
	for _, m := range mutate {
		m(e)
	}
	require.NoError(t, repo.CreateEntity(context.Background(), e))
	return e
}

func TestNewRepository(t *testing.T) {
	t.Run("success with memory database", func(t *testing.T) {
		repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
		require.NoError(t, err)
		defer repo.Close()
		assert.NotNil(t, repo)
	})

	t.Run("error with empty path", func(t *testing.T) {
		_, err := NewRepository(config.SQLiteConfig{Path: ""})
		require.Error(t, err)
	})
}

func TestRepository_EnsureSchema(t *testing.T) {
	repo := setupTestRepo(t)

	tables := []string{"entities", "documents", "relationships", "entity_sources", "entity_versions", "chunks", "audit_log"}
	for _, table := range tables {
		var count int
		err := repo.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestRepository_EnsureSchema_Idempotent(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err)
}

func TestRepository_Entities(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	session := 4
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := createEntity(t, repo, "Bob the Wizard!!", func(e *entities.Entity) {
		e.Content = "A wizard of some renown."
		e.Aliases = []string{"Bob", "The Grey"}
		e.Tags = []string{"mage"}
		e.Restricted = true
		e.SessionNumber = &session
		e.SessionDate = &date
		e.OwnerPlayerID = "player-7"
	})

	t.Run("canonical name derived", func(t *testing.T) {
		assert.Equal(t, "bob-the-wizard", created.CanonicalName)
		assert.NotEmpty(t, created.ID)
	})

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindEntityByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Bob the Wizard!!", found.Name)
		assert.Equal(t, []string{"Bob", "The Grey"}, found.Aliases)
		assert.Equal(t, []string{"mage"}, found.Tags)
		assert.True(t, found.Restricted)
		require.NotNil(t, found.SessionNumber)
		assert.Equal(t, 4, *found.SessionNumber)
		require.NotNil(t, found.SessionDate)
		assert.True(t, date.Equal(*found.SessionDate))
		assert.Equal(t, "player-7", found.OwnerPlayerID)
	})

	t.Run("find missing returns nil", func(t *testing.T) {
		found, err := repo.FindEntityByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("find by canonical name", func(t *testing.T) {
		found, err := repo.FindEntityByCanonicalName(ctx, testCampaign, "bob-the-wizard")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)

		other, err := repo.FindEntityByCanonicalName(ctx, "campaign-2", "bob-the-wizard")
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("duplicate canonical name conflicts", func(t *testing.T) {
		err := repo.CreateEntity(ctx, &entities.Entity{CampaignID: testCampaign, Name: "bob the wizard"})
		require.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("same name in another campaign is fine", func(t *testing.T) {
		err := repo.CreateEntity(ctx, &entities.Entity{CampaignID: "campaign-2", Name: "Bob the Wizard"})
		require.NoError(t, err)
	})

	t.Run("update", func(t *testing.T) {
		created.Content = "Now an archmage."
		created.Name = "Bob the Archmage"
		require.NoError(t, repo.UpdateEntity(ctx, created))

		found, err := repo.FindEntityByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Now an archmage.", found.Content)
		assert.Equal(t, "bob-the-archmage", found.CanonicalName)
	})

	t.Run("update missing", func(t *testing.T) {
		err := repo.UpdateEntity(ctx, &entities.Entity{ID: "missing", Name: "x"})
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("search by alias", func(t *testing.T) {
		found, err := repo.SearchEntities(ctx, testCampaign, "grey", 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, created.ID, found[0].ID)
	})

	t.Run("count and list", func(t *testing.T) {
		createEntity(t, repo, "Grog")

		count, err := repo.CountEntities(ctx, testCampaign)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		page, err := repo.ListEntities(ctx, testCampaign, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "Grog", page[0].Name)

		all, err := repo.ListAllEntities(ctx, testCampaign)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("delete missing", func(t *testing.T) {
		err := repo.DeleteEntity(ctx, "missing")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestRepository_Relationships(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	grog := createEntity(t, repo, "Grog")
	pike := createEntity(t, repo, "Pike")
	keep := createEntity(t, repo, "Whitestone")

	rel := &entities.Relationship{
		CampaignID:     testCampaign,
		SourceEntityID: grog.ID,
		TargetEntityID: pike.ID,
		Type:           entities.RelationAlly,
		ReverseLabel:   "ally of",
	}
	require.NoError(t, repo.SaveRelationship(ctx, rel))

	t.Run("duplicate conflicts", func(t *testing.T) {
		dup := &entities.Relationship{
			CampaignID:     testCampaign,
			SourceEntityID: grog.ID,
			TargetEntityID: pike.ID,
			Type:           entities.RelationAlly,
		}
		require.ErrorIs(t, repo.SaveRelationship(ctx, dup), apperrors.ErrConflict)
	})

	t.Run("find by either endpoint", func(t *testing.T) {
		fromSource, err := repo.FindRelationshipsByEntity(ctx, grog.ID)
		require.NoError(t, err)
		require.Len(t, fromSource, 1)
		assert.Equal(t, "ally of", fromSource[0].ReverseLabel)

		fromTarget, err := repo.FindRelationshipsByEntity(ctx, pike.ID)
		require.NoError(t, err)
		assert.Len(t, fromTarget, 1)
	})

	t.Run("related entities both directions", func(t *testing.T) {
		require.NoError(t, repo.SaveRelationship(ctx, &entities.Relationship{
			CampaignID:     testCampaign,
			SourceEntityID: keep.ID,
			TargetEntityID: pike.ID,
			Type:           entities.RelationLocatedIn,
		}))

		depth1, err := repo.FindRelatedEntities(ctx, grog.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{pike.ID}, depth1)

		depth2, err := repo.FindRelatedEntities(ctx, grog.ID, 2)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{pike.ID, keep.ID}, depth2)

		none, err := repo.FindRelatedEntities(ctx, grog.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("count and list by campaign", func(t *testing.T) {
		count, err := repo.CountRelationships(ctx, testCampaign)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		all, err := repo.ListRelationships(ctx, testCampaign)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("cascade on entity delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteEntity(ctx, keep.ID))

		count, err := repo.CountRelationships(ctx, testCampaign)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("delete relationship", func(t *testing.T) {
		require.NoError(t, repo.DeleteRelationship(ctx, rel.ID))
		require.ErrorIs(t, repo.DeleteRelationship(ctx, rel.ID), apperrors.ErrNotFound)
	})
}

func TestRepository_VersionsAndAudit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	grog := createEntity(t, repo, "Grog", func(e *entities.Entity) { e.Content = "v1" })

	for _, content := range []string{"v1", "v2"} {
		snapshot := *grog
		snapshot.Content = content
		require.NoError(t, repo.SaveVersion(ctx, &entities.EntityVersion{
			EntityID:   grog.ID,
			ChangeType: entities.ChangeUpdate,
			Data:       snapshot,
		}))
	}

	versions, err := repo.FindVersionsByEntity(ctx, grog.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, "v2", versions[0].Data.Content)
	assert.Equal(t, 1, versions[1].Version)

	require.NoError(t, repo.LogAction(ctx, testCampaign, entities.AuditUpdate, grog.ID, map[string]any{"field": "content"}))
	require.NoError(t, repo.LogAction(ctx, testCampaign, entities.AuditCommit, "", nil))

	entries, err := repo.FindAuditLog(ctx, testCampaign, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entities.AuditCommit, entries[0].Action)
	assert.Empty(t, entries[0].EntityID)
	assert.Equal(t, grog.ID, entries[1].EntityID)
	assert.Equal(t, "content", entries[1].Details["field"])
}

func TestRepository_DocumentsAndSources(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	grog := createEntity(t, repo, "Grog")
	doc := &entities.Document{CampaignID: testCampaign, Name: "session-1.md", Content: "notes"}
	require.NoError(t, repo.SaveDocument(ctx, doc))

	require.NoError(t, repo.LinkEntitySource(ctx, grog.ID, doc.ID))
	require.NoError(t, repo.LinkEntitySource(ctx, grog.ID, doc.ID))

	sources, err := repo.FindEntitySources(ctx, grog.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, sources)
}

func TestRepository_ApplyMerge(t *testing.T) {
	repo := setupTestRepo(t)
	chunks := NewChunkRepository(repo)
	ctx := context.Background()

	grog := createEntity(t, repo, "Grog", func(e *entities.Entity) { e.Aliases = []string{"Chief"} })
	orc := createEntity(t, repo, "Orc Chief", func(e *entities.Entity) { e.Aliases = []string{"Chief"} })
	pike := createEntity(t, repo, "Pike", func(e *entities.Entity) { e.Content = "Friends with [[Orc Chief]]." })
	tavern := createEntity(t, repo, "Tavern")

	save := func(src, dst *entities.Entity, relType string) *entities.Relationship {
		rel := &entities.Relationship{CampaignID: testCampaign, SourceEntityID: src.ID, TargetEntityID: dst.ID, Type: relType}
		require.NoError(t, repo.SaveRelationship(ctx, rel))
		return rel
	}
	save(pike, orc, entities.RelationAlly)    // becomes pike -> grog
	save(orc, tavern, entities.RelationOwns)  // becomes grog -> tavern
	save(grog, tavern, entities.RelationOwns) // already exists, orc's copy dropped

	doc := &entities.Document{CampaignID: testCampaign, Name: "notes"}
	require.NoError(t, repo.SaveDocument(ctx, doc))
	require.NoError(t, repo.LinkEntitySource(ctx, orc.ID, doc.ID))
	require.NoError(t, chunks.SaveChunk(ctx, entities.Chunk{EntityID: orc.ID, CampaignID: testCampaign, Text: "orc", Embedding: []float32{1, 0}}))

	updated := *grog
	updated.Aliases = []string{"Chief", "Orc Chief", "orc-chief"}
	plan := &entities.MergePlan{
		Primary:     &updated,
		SecondaryID: orc.ID,
		Rewrites:    []entities.ContentRewrite{{EntityID: pike.ID, Content: "Friends with [[Grog]]."}},
		Versions: []entities.EntityVersion{
			{EntityID: grog.ID, ChangeType: entities.ChangeMerge, Data: *grog},
			{EntityID: grog.ID, ChangeType: entities.ChangeMergedIn, Data: *orc},
		},
	}

	require.NoError(t, repo.ApplyMerge(ctx, plan))

	gone, err := repo.FindEntityByID(ctx, orc.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	rels, err := repo.ListRelationships(ctx, testCampaign)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	for _, rel := range rels {
		assert.False(t, rel.Involves(orc.ID))
	}

	merged, err := repo.FindEntityByID(ctx, grog.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chief", "Orc Chief", "orc-chief"}, merged.Aliases)

	rewritten, err := repo.FindEntityByID(ctx, pike.ID)
	require.NoError(t, err)
	assert.Equal(t, "Friends with [[Grog]].", rewritten.Content)

	sources, err := repo.FindEntitySources(ctx, grog.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, sources)

	versions, err := repo.FindVersionsByEntity(ctx, grog.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	count, err := chunks.CountChunksByEntity(ctx, orc.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepository_ApplyMerge_RollsBack(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	grog := createEntity(t, repo, "Grog")
	pike := createEntity(t, repo, "Pike")
	require.NoError(t, repo.SaveRelationship(ctx, &entities.Relationship{
		CampaignID: testCampaign, SourceEntityID: pike.ID, TargetEntityID: grog.ID, Type: entities.RelationAlly,
	}))

	updated := *grog
	updated.Content = "merged"
	err := repo.ApplyMerge(ctx, &entities.MergePlan{Primary: &updated, SecondaryID: "missing"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	found, err := repo.FindEntityByID(ctx, grog.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Content)
}

func TestRepository_ApplyMerge_DropsSelfLoops(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	grog := createEntity(t, repo, "Grog")
	orc := createEntity(t, repo, "Orc Chief")
	tavern := createEntity(t, repo, "Tavern")
	for _, rel := range []*entities.Relationship{
		{CampaignID: testCampaign, SourceEntityID: grog.ID, TargetEntityID: orc.ID, Type: entities.RelationAlly},
		{CampaignID: testCampaign, SourceEntityID: orc.ID, TargetEntityID: grog.ID, Type: entities.RelationEnemy},
		{CampaignID: testCampaign, SourceEntityID: orc.ID, TargetEntityID: tavern.ID, Type: entities.RelationOwns},
	} {
		require.NoError(t, repo.SaveRelationship(ctx, rel))
	}

	updated := *grog
	require.NoError(t, repo.ApplyMerge(ctx, &entities.MergePlan{Primary: &updated, SecondaryID: orc.ID}))

	rels, err := repo.ListRelationships(ctx, testCampaign)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, grog.ID, rels[0].SourceEntityID)
	assert.Equal(t, tavern.ID, rels[0].TargetEntityID)
}

func countRows(t *testing.T, repo *Repository, table string) int {
	t.Helper()
	var n int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestRepository_ApplyCommit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	vex := createEntity(t, repo, "Vex")
	before := *vex

	grog := &entities.Entity{ID: generateUUID(), CampaignID: testCampaign, Name: "Grog", Type: "npc"}
	pike := &entities.Entity{ID: generateUUID(), CampaignID: testCampaign, Name: "Pike", Type: "npc"}
	updated := *vex
	updated.Content = "Owns a bear."
	doc := &entities.Document{ID: generateUUID(), CampaignID: testCampaign, Name: "Session 1"}

	rel := func(src, dst, relType string) *entities.Relationship {
		return &entities.Relationship{CampaignID: testCampaign, SourceEntityID: src, TargetEntityID: dst, Type: relType, DocumentID: doc.ID}
	}
	written, err := repo.ApplyCommit(ctx, &entities.CommitPlan{
		Document: doc,
		Creates:  []*entities.Entity{grog, pike},
		Updates:  []*entities.Entity{&updated},
		Versions: []entities.EntityVersion{{EntityID: vex.ID, ChangeType: entities.ChangeUpdate, Data: before}},
		Relationships: []*entities.Relationship{
			rel(grog.ID, pike.ID, entities.RelationAlly),
			rel(grog.ID, pike.ID, entities.RelationAlly),
			rel(pike.ID, vex.ID, entities.RelationServes),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	assert.Equal(t, 3, countRows(t, repo, "entities"))
	assert.Equal(t, 1, countRows(t, repo, "documents"))

	found, err := repo.FindEntityByID(ctx, vex.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owns a bear.", found.Content)

	for _, id := range []string{grog.ID, pike.ID, vex.ID} {
		sources, err := repo.FindEntitySources(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{doc.ID}, sources)
	}

	versions, err := repo.FindVersionsByEntity(ctx, vex.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestRepository_ApplyCommit_RollsBack(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	createEntity(t, repo, "Grog")

	pike := &entities.Entity{ID: generateUUID(), CampaignID: testCampaign, Name: "Pike"}
	grog := &entities.Entity{ID: generateUUID(), CampaignID: testCampaign, Name: "Grog"}
	plan := func() *entities.CommitPlan {
		return &entities.CommitPlan{
			Document: &entities.Document{ID: generateUUID(), CampaignID: testCampaign, Name: "Session 2"},
			Creates:  []*entities.Entity{pike, grog},
		}
	}

	_, err := repo.ApplyCommit(ctx, plan())
	require.ErrorIs(t, err, apperrors.ErrConflict)

	assert.Equal(t, 1, countRows(t, repo, "entities"))
	assert.Zero(t, countRows(t, repo, "documents"))
	assert.Zero(t, countRows(t, repo, "entity_sources"))

	// Retrying without the conflicting entity succeeds.
	retry := plan()
	retry.Creates = retry.Creates[:1]
	_, err = repo.ApplyCommit(ctx, retry)
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, repo, "entities"))
}
