package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
)

type mergeFixture struct {
	db        *mocks.RelationalDB
	vdb       *mocks.VectorDB
	svc       *MergeService
	grog      *entities.Entity
	orc       *entities.Entity
	pike      *entities.Entity
	scanlan   *entities.Entity
	documents []string
}

func newMergeFixture(t *testing.T) *mergeFixture {
	t.Helper()
	ctx := context.Background()
	f := &mergeFixture{db: mocks.NewRelationalDB(), vdb: mocks.NewVectorDB()}

	f.grog = &entities.Entity{CampaignID: testCampaign, Name: "Grog", Type: "npc", Content: "Barbarian. Friend of [[Pike]].", Tags: []string{"vox-machina"}}
	f.orc = &entities.Entity{CampaignID: testCampaign, Name: "Orc Chief", Type: "npc", Content: "Leads the raid.", Aliases: []string{"Chief"}, Tags: []string{"orc"}}
	f.pike = &entities.Entity{CampaignID: testCampaign, Name: "Pike", Type: "npc", Content: "Heals [[Orc Chief]] and [[chief|the chief]]."}
	f.scanlan = &entities.Entity{CampaignID: testCampaign, Name: "Scanlan", Type: "npc"}
	for _, e := range []*entities.Entity{f.grog, f.orc, f.pike, f.scanlan} {
		require.NoError(t, f.db.CreateEntity(ctx, e))
	}

	for _, r := range []*entities.Relationship{
		{CampaignID: testCampaign, SourceEntityID: f.orc.ID, TargetEntityID: f.pike.ID, Type: "enemy_of"},
		{CampaignID: testCampaign, SourceEntityID: f.grog.ID, TargetEntityID: f.pike.ID, Type: "enemy_of"},
		{CampaignID: testCampaign, SourceEntityID: f.scanlan.ID, TargetEntityID: f.orc.ID, Type: "mocks"},
	} {
		require.NoError(t, f.db.SaveRelationship(ctx, r))
	}

	doc := &entities.Document{CampaignID: testCampaign, Name: "Session 4"}
	require.NoError(t, f.db.SaveDocument(ctx, doc))
	require.NoError(t, f.db.LinkEntitySource(ctx, f.orc.ID, doc.ID))
	f.documents = []string{doc.ID}

	f.vdb.AddChunk(entities.Chunk{ID: "orc-0", EntityID: f.orc.ID, CampaignID: testCampaign, Text: "Leads the raid."})

	embeddings, _ := newEmbeddingService(&mocks.Embedder{EmbeddingResult: []float32{1}}, f.vdb)
	f.svc = NewMergeService(f.db, embeddings, zap.NewNop())
	return f
}

func TestMergeService_Merge(t *testing.T) {
	ctx := context.Background()
	f := newMergeFixture(t)

	merged, err := f.svc.Merge(ctx, f.grog.ID, f.orc.ID)
	require.NoError(t, err)

	assert.Equal(t, f.grog.ID, merged.ID)
	assert.Equal(t, "Grog", merged.Name)
	assert.Equal(t, []string{"Orc Chief", "orc-chief", "Chief"}, merged.Aliases)
	assert.Equal(t, []string{"vox-machina", "orc"}, merged.Tags)
	assert.Equal(t, "Barbarian. Friend of [[Pike]].\n\n---\n\n*Merged from Orc Chief*\n\nLeads the raid.", merged.Content)

	gone, err := f.db.FindEntityByID(ctx, f.orc.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	stored, err := f.db.FindEntityByID(ctx, f.grog.ID)
	require.NoError(t, err)
	assert.Equal(t, merged.Aliases, stored.Aliases)

	pike, err := f.db.FindEntityByID(ctx, f.pike.ID)
	require.NoError(t, err)
	assert.Equal(t, "Heals [[Grog]] and [[Grog|the chief]].", pike.Content)

	rels, err := f.db.ListRelationships(ctx, testCampaign)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	for _, r := range rels {
		assert.False(t, r.Involves(f.orc.ID))
	}
	mocked, err := f.db.FindRelationshipsByEntity(ctx, f.scanlan.ID)
	require.NoError(t, err)
	require.Len(t, mocked, 1)
	assert.Equal(t, f.grog.ID, mocked[0].TargetEntityID)

	assert.Equal(t, f.documents, f.db.Sources(f.grog.ID))

	assert.Empty(t, f.vdb.ChunksFor(f.orc.ID))
	assert.Len(t, f.vdb.ChunksFor(f.grog.ID), 1)

	history, err := f.db.FindVersionsByEntity(ctx, f.grog.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entities.ChangeMergedIn, history[0].ChangeType)
	assert.Equal(t, "Orc Chief", history[0].Data.Name)
	assert.Equal(t, entities.ChangeMerge, history[1].ChangeType)
	assert.Equal(t, "Barbarian. Friend of [[Pike]].", history[1].Data.Content)

	audit := f.db.AuditLog()
	require.Len(t, audit, 1)
	assert.Equal(t, entities.AuditMerge, audit[0].Action)
	assert.Equal(t, f.grog.ID, audit[0].EntityID)
}

func TestMergeService_DropsEdgesBetweenMerged(t *testing.T) {
	ctx := context.Background()
	f := newMergeFixture(t)
	require.NoError(t, f.db.SaveRelationship(ctx, &entities.Relationship{
		CampaignID: testCampaign, SourceEntityID: f.grog.ID, TargetEntityID: f.orc.ID, Type: "ally_of",
	}))
	require.NoError(t, f.db.SaveRelationship(ctx, &entities.Relationship{
		CampaignID: testCampaign, SourceEntityID: f.orc.ID, TargetEntityID: f.grog.ID, Type: "owes",
	}))

	_, err := f.svc.Merge(ctx, f.grog.ID, f.orc.ID)
	require.NoError(t, err)

	rels, err := f.db.ListRelationships(ctx, testCampaign)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	for _, r := range rels {
		assert.NotEqual(t, r.SourceEntityID, r.TargetEntityID)
	}
}

func TestMergeService_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("self merge", func(t *testing.T) {
		f := newMergeFixture(t)
		_, err := f.svc.Merge(ctx, f.grog.ID, f.grog.ID)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("missing primary", func(t *testing.T) {
		f := newMergeFixture(t)
		_, err := f.svc.Merge(ctx, "missing", f.orc.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("missing secondary", func(t *testing.T) {
		f := newMergeFixture(t)
		_, err := f.svc.Merge(ctx, f.grog.ID, "missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("different campaigns", func(t *testing.T) {
		f := newMergeFixture(t)
		stranger := &entities.Entity{CampaignID: "other", Name: "Stranger"}
		require.NoError(t, f.db.CreateEntity(ctx, stranger))

		_, err := f.svc.Merge(ctx, f.grog.ID, stranger.ID)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Zero(t, f.db.ApplyMergeCallCount)
	})

	t.Run("store failure leaves everything in place", func(t *testing.T) {
		f := newMergeFixture(t)
		f.db.MergeErr = errors.New("tx aborted")

		_, err := f.svc.Merge(ctx, f.grog.ID, f.orc.ID)
		require.Error(t, err)

		orc, err := f.db.FindEntityByID(ctx, f.orc.ID)
		require.NoError(t, err)
		assert.NotNil(t, orc)
		assert.Len(t, f.vdb.ChunksFor(f.orc.ID), 1)
		assert.Empty(t, f.db.AuditLog())
	})
}

func TestBuildMergePlan(t *testing.T) {
	primary := &entities.Entity{ID: "p", Name: "Grog", CanonicalName: "grog", Content: "Big.", Aliases: []string{"Big G"}}
	secondary := &entities.Entity{ID: "s", Name: "Grog Strongjaw", CanonicalName: "grog-strongjaw", Aliases: []string{"grog", "big g", "Strongjaw"}}
	other := &entities.Entity{ID: "o", Name: "Pike", Content: "Knows [[Strongjaw]] and [[Grog]]."}
	untouched := &entities.Entity{ID: "u", Name: "Vex", Content: "No links."}

	plan := BuildMergePlan(primary, secondary, []*entities.Entity{primary, secondary, other, untouched})

	assert.Equal(t, "s", plan.SecondaryID)
	assert.Equal(t, "Big.", plan.Primary.Content)
	assert.Equal(t, []string{"Big G", "Grog Strongjaw", "grog-strongjaw", "Strongjaw"}, plan.Primary.Aliases)
	require.Len(t, plan.Rewrites, 1)
	assert.Equal(t, entities.ContentRewrite{EntityID: "o", Content: "Knows [[Grog]] and [[Grog]]."}, plan.Rewrites[0])
	require.Len(t, plan.Versions, 2)
	assert.Equal(t, "p", plan.Versions[1].EntityID)

	// The inputs are not modified.
	assert.Equal(t, []string{"Big G"}, primary.Aliases)
}
