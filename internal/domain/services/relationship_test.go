package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
)

func seedParty(t *testing.T, db *mocks.RelationalDB, names ...string) map[string]string {
	t.Helper()
	ids := make(map[string]string, len(names))
	for _, n := range names {
		e := &entities.Entity{CampaignID: testCampaign, Name: n, Type: "npc"}
		require.NoError(t, db.CreateEntity(context.Background(), e))
		ids[n] = e.ID
	}
	return ids
}

func TestRelationshipService_Create(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewRelationalDB()
	ids := seedParty(t, db, "Grog", "Pike")
	svc := NewRelationshipService(db)

	rel, err := svc.Create(ctx, ids["Grog"], "Best Friend Of", ids["Pike"], "  best friend of ")
	require.NoError(t, err)
	assert.NotEmpty(t, rel.ID)
	assert.Equal(t, testCampaign, rel.CampaignID)
	assert.Equal(t, "best_friend_of", rel.Type)
	assert.Equal(t, "best friend of", rel.ReverseLabel)

	_, err = svc.Create(ctx, ids["Grog"], "best-friend-of", ids["Pike"], "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// The reverse direction is a different edge.
	_, err = svc.Create(ctx, ids["Pike"], "best_friend_of", ids["Grog"], "")
	assert.NoError(t, err)

	count, err := svc.Count(ctx, testCampaign)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRelationshipService_CreateErrors(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewRelationalDB()
	ids := seedParty(t, db, "Grog")
	stranger := &entities.Entity{CampaignID: "other", Name: "Stranger"}
	require.NoError(t, db.CreateEntity(ctx, stranger))
	svc := NewRelationshipService(db)

	tests := []struct {
		name    string
		source  string
		relType string
		target  string
		wantErr error
	}{
		{name: "blank type", source: ids["Grog"], relType: " - ", target: stranger.ID, wantErr: apperrors.ErrInvalidInput},
		{name: "missing source", source: "missing", relType: "knows", target: ids["Grog"], wantErr: apperrors.ErrNotFound},
		{name: "missing target", source: ids["Grog"], relType: "knows", target: "missing", wantErr: apperrors.ErrNotFound},
		{name: "cross campaign", source: ids["Grog"], relType: "knows", target: stranger.ID, wantErr: apperrors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.source, tt.relType, tt.target, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRelationshipService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewRelationalDB()
	ids := seedParty(t, db, "Grog", "Pike", "Vex", "Trinket")
	svc := NewRelationshipService(db)

	r1, err := svc.Create(ctx, ids["Grog"], "protects", ids["Pike"], "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, ids["Vex"], "trusts", ids["Pike"], "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, ids["Vex"], "owns", ids["Trinket"], "")
	require.NoError(t, err)

	list, err := svc.List(ctx, ids["Pike"])
	require.NoError(t, err)
	assert.Len(t, list, 2)

	near, err := svc.ListWithDepth(ctx, ids["Grog"], 1)
	require.NoError(t, err)
	assert.Equal(t, []RelatedEntity{{EntityID: ids["Pike"]}}, near)

	far, err := svc.ListWithDepth(ctx, ids["Grog"], 3)
	require.NoError(t, err)
	assert.Len(t, far, 3)

	none, err := svc.ListWithDepth(ctx, ids["Grog"], 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, svc.Delete(ctx, r1.ID))
	assert.ErrorIs(t, svc.Delete(ctx, r1.ID), apperrors.ErrNotFound)

	list, err = svc.List(ctx, ids["Grog"])
	require.NoError(t, err)
	assert.Empty(t, list)
}
