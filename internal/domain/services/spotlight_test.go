package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

func TestIsFresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &ports.CacheEntry{InsertedAt: now.Add(-5 * time.Minute), Fingerprint: "4"}

	tests := []struct {
		name        string
		entry       *ports.CacheEntry
		fingerprint string
		ttl         time.Duration
		want        bool
	}{
		{name: "fresh", entry: entry, fingerprint: "4", ttl: 10 * time.Minute, want: true},
		{name: "expired", entry: entry, fingerprint: "4", ttl: 5 * time.Minute, want: false},
		{name: "fingerprint changed", entry: entry, fingerprint: "5", ttl: 10 * time.Minute, want: false},
		{name: "missing", entry: nil, fingerprint: "4", ttl: 10 * time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFresh(tt.entry, tt.fingerprint, now, tt.ttl))
		})
	}
}

type spotlightFixture struct {
	db    *mocks.RelationalDB
	cache *mocks.Cache
	svc   *SpotlightService
	now   time.Time
	ids   map[string]string
}

func newSpotlightFixture(t *testing.T) *spotlightFixture {
	t.Helper()
	ctx := context.Background()
	f := &spotlightFixture{
		db:    mocks.NewRelationalDB(),
		cache: mocks.NewCache(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ids:   make(map[string]string),
	}
	f.svc = NewSpotlightService(f.db, f.cache, 0, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }

	for _, e := range []*entities.Entity{
		{CampaignID: testCampaign, Name: "Grog", Type: "npc"},
		{CampaignID: testCampaign, Name: "Pike", Type: "npc"},
		{CampaignID: testCampaign, Name: "The Slayer's Take", Type: "location"},
		{CampaignID: testCampaign, Name: "Secret Patron", Type: "npc", Restricted: true},
	} {
		require.NoError(t, f.db.CreateEntity(ctx, e))
		f.ids[e.Name] = e.ID
	}
	for _, r := range [][3]string{
		{"Grog", "Pike", "protects"},
		{"Grog", "The Slayer's Take", "member_of"},
		{"Secret Patron", "Grog", "manipulates"},
	} {
		require.NoError(t, f.db.SaveRelationship(ctx, &entities.Relationship{
			CampaignID: testCampaign, SourceEntityID: f.ids[r[0]], TargetEntityID: f.ids[r[1]], Type: r[2],
		}))
	}
	return f
}

func TestSpotlightService_Views(t *testing.T) {
	ctx := context.Background()
	f := newSpotlightFixture(t)

	public, err := f.svc.Get(ctx, testCampaign, false)
	require.NoError(t, err)
	assert.Equal(t, 3, public.EntityCount)
	assert.Equal(t, 2, public.RelationshipCount)
	assert.Equal(t, map[string]int{"npc": 2, "location": 1}, public.CountsByType)
	assert.Equal(t, []ConnectedEntity{
		{EntityID: f.ids["Grog"], Name: "Grog", Type: "npc", Degree: 2},
		{EntityID: f.ids["Pike"], Name: "Pike", Type: "npc", Degree: 1},
		{EntityID: f.ids["The Slayer's Take"], Name: "The Slayer's Take", Type: "location", Degree: 1},
	}, public.TopConnected)

	full, err := f.svc.Get(ctx, testCampaign, true)
	require.NoError(t, err)
	assert.Equal(t, 4, full.EntityCount)
	assert.Equal(t, 3, full.RelationshipCount)
	assert.Equal(t, 3, full.TopConnected[0].Degree)

	assert.Contains(t, f.cache.Entries, "spotlight:"+testCampaign+":public")
	assert.Contains(t, f.cache.Entries, "spotlight:"+testCampaign+":full")
}

func TestSpotlightService_Caching(t *testing.T) {
	ctx := context.Background()
	f := newSpotlightFixture(t)

	first, err := f.svc.Get(ctx, testCampaign, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.SetCallCount)

	f.now = f.now.Add(time.Minute)
	cached, err := f.svc.Get(ctx, testCampaign, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.SetCallCount)
	assert.True(t, first.GeneratedAt.Equal(cached.GeneratedAt))

	require.NoError(t, f.db.CreateEntity(ctx, &entities.Entity{CampaignID: testCampaign, Name: "Vex", Type: "npc"}))
	rebuilt, err := f.svc.Get(ctx, testCampaign, false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.SetCallCount)
	assert.Equal(t, 4, rebuilt.EntityCount)

	f.now = f.now.Add(DefaultSpotlightTTL)
	_, err = f.svc.Get(ctx, testCampaign, false)
	require.NoError(t, err)
	assert.Equal(t, 3, f.cache.SetCallCount)
}

func TestSpotlightService_CacheFailuresAreNotFatal(t *testing.T) {
	f := newSpotlightFixture(t)
	f.cache.GetErr = errors.New("redis down")
	f.cache.SetErr = errors.New("redis down")

	spot, err := f.svc.Get(context.Background(), testCampaign, false)
	require.NoError(t, err)
	assert.Equal(t, 3, spot.EntityCount)
}

func TestSpotlightService_Invalidate(t *testing.T) {
	ctx := context.Background()
	f := newSpotlightFixture(t)

	_, err := f.svc.Get(ctx, testCampaign, false)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, testCampaign, true)
	require.NoError(t, err)
	require.Len(t, f.cache.Entries, 2)

	require.NoError(t, f.svc.Invalidate(ctx, testCampaign))
	assert.Empty(t, f.cache.Entries)
}

func TestSpotlightService_StoreFailure(t *testing.T) {
	f := newSpotlightFixture(t)
	f.db.Err = errors.New("locked")

	_, err := f.svc.Get(context.Background(), testCampaign, false)
	assert.Error(t, err)
}
