package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// noSleep records backoff delays instead of waiting.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	var mu sync.Mutex
	return func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*delays = append(*delays, d)
		return nil
	}
}

func newEmbeddingService(embedder ports.Embedder, vdb ports.VectorDB) (*EmbeddingService, *[]time.Duration) {
	svc := NewEmbeddingService(embedder, vdb, 3, zap.NewNop())
	delays := &[]time.Duration{}
	svc.retry.Sleep = noSleep(delays)
	return svc, delays
}

func grogEntity() *entities.Entity {
	return &entities.Entity{
		ID:         "grog",
		CampaignID: testCampaign,
		Name:       "Grog",
		Type:       "npc",
		Content:    "Grog fights alongside [[Pike]] and [[Vex|Vex'ahlia]].",
	}
}

func TestEmbeddingService_Sync(t *testing.T) {
	embedder := &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2, 0.3}}
	vdb := mocks.NewVectorDB()
	svc, _ := newEmbeddingService(embedder, vdb)

	entity := grogEntity()
	entity.Restricted = true
	result, err := svc.Sync(context.Background(), entity)
	require.NoError(t, err)

	assert.Equal(t, "grog", result.EntityID)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Stored)
	assert.True(t, result.Complete())
	assert.False(t, result.Disabled)
	assert.Equal(t, ports.TaskPassage, embedder.LastTask())

	chunks := vdb.ChunksFor("grog")
	require.Len(t, chunks, 1)
	c := chunks[0]
	assert.Equal(t, testCampaign, c.CampaignID)
	assert.Equal(t, "Grog", c.EntityName)
	assert.Equal(t, "npc", c.EntityType)
	assert.True(t, c.Restricted)
	assert.Equal(t, []string{"Grog"}, c.HeaderPath)
	assert.Equal(t, []string{"Pike", "Vex"}, c.Mentions)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, c.Embedding)
	assert.NotEmpty(t, c.ID)
}

func TestEmbeddingService_SyncReplacesChunks(t *testing.T) {
	vdb := mocks.NewVectorDB()
	svc, _ := newEmbeddingService(&mocks.Embedder{EmbeddingResult: []float32{1}}, vdb)
	entity := grogEntity()
	entity.Content = "# Combat\n\nSwings an axe.\n\n# Drinking\n\nLoves ale."

	for range 3 {
		_, err := svc.Sync(context.Background(), entity)
		require.NoError(t, err)
	}

	assert.Len(t, vdb.ChunksFor("grog"), 2)
	assert.Equal(t, 3, vdb.DeleteCallCount)
}

func TestEmbeddingService_SyncConcurrent(t *testing.T) {
	vdb := mocks.NewVectorDB()
	svc, _ := newEmbeddingService(&mocks.Embedder{EmbeddingResult: []float32{1}}, vdb)
	entity := grogEntity()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Sync(context.Background(), entity)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, vdb.ChunksFor("grog"), 1)
}

func TestEmbeddingService_RetriesRateLimits(t *testing.T) {
	embedder := &mocks.Embedder{
		EmbedFunc: func(call int, _ string, _ ports.EmbeddingTask) ([]float32, error) {
			if call <= 2 {
				return nil, fmt.Errorf("provider: %w", apperrors.ErrRateLimited)
			}
			return []float32{1, 0}, nil
		},
	}
	vdb := mocks.NewVectorDB()
	svc, delays := newEmbeddingService(embedder, vdb)

	result, err := svc.Sync(context.Background(), grogEntity())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 3, embedder.CallCount())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
}

func TestEmbeddingService_RetriesExhausted(t *testing.T) {
	embedder := &mocks.Embedder{Err: apperrors.ErrRateLimited}
	svc, delays := newEmbeddingService(embedder, mocks.NewVectorDB())

	_, err := svc.GenerateEmbedding(context.Background(), "text", ports.TaskQuery)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Equal(t, 4, embedder.CallCount())
	assert.Len(t, *delays, 3)
}

func TestEmbeddingService_OtherErrorsNotRetried(t *testing.T) {
	embedder := &mocks.Embedder{Err: errors.New("bad request")}
	svc, delays := newEmbeddingService(embedder, mocks.NewVectorDB())

	_, err := svc.GenerateEmbedding(context.Background(), "text", ports.TaskQuery)
	require.Error(t, err)
	assert.Equal(t, 1, embedder.CallCount())
	assert.Empty(t, *delays)
}

func TestEmbeddingService_PartialFailure(t *testing.T) {
	embedder := &mocks.Embedder{
		EmbedFunc: func(_ int, text string, _ ports.EmbeddingTask) ([]float32, error) {
			if strings.Contains(text, "cursed") {
				return nil, errors.New("content rejected")
			}
			return []float32{1}, nil
		},
	}
	vdb := mocks.NewVectorDB()
	svc, _ := newEmbeddingService(embedder, vdb)

	entity := grogEntity()
	entity.Content = "## Combat\n\nSwings an axe.\n\n## Secrets\n\nA cursed tattoo."
	result, err := svc.Sync(context.Background(), entity)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Stored)
	assert.False(t, result.Complete())

	chunks := vdb.ChunksFor("grog")
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"Grog", "Combat"}, chunks[0].HeaderPath)
}

func TestEmbeddingService_EmptyContentClearsChunks(t *testing.T) {
	vdb := mocks.NewVectorDB()
	vdb.AddChunk(entities.Chunk{ID: "old", EntityID: "grog", CampaignID: testCampaign, Text: "stale"})
	embedder := &mocks.Embedder{EmbeddingResult: []float32{1}}
	svc, _ := newEmbeddingService(embedder, vdb)

	entity := grogEntity()
	entity.Content = "   "
	result, err := svc.Sync(context.Background(), entity)
	require.NoError(t, err)

	assert.Zero(t, result.Attempted)
	assert.True(t, result.Complete())
	assert.Empty(t, vdb.ChunksFor("grog"))
	assert.Zero(t, embedder.CallCount())
}

func TestEmbeddingService_Disabled(t *testing.T) {
	vdb := mocks.NewVectorDB()
	svc := NewEmbeddingService(nil, vdb, 3, zap.NewNop())

	assert.False(t, svc.Enabled())
	result, err := svc.Sync(context.Background(), grogEntity())
	require.NoError(t, err)
	assert.True(t, result.Disabled)
	assert.Zero(t, vdb.DeleteCallCount)

	_, err = svc.GenerateEmbedding(context.Background(), "text", ports.TaskQuery)
	assert.Error(t, err)
}

func TestEmbeddingService_SyncErrors(t *testing.T) {
	t.Run("save failure", func(t *testing.T) {
		vdb := mocks.NewVectorDB()
		vdb.SaveErr = errors.New("collection missing")
		svc, _ := newEmbeddingService(&mocks.Embedder{EmbeddingResult: []float32{1}}, vdb)

		_, err := svc.Sync(context.Background(), grogEntity())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collection missing")
	})

	t.Run("delete failure", func(t *testing.T) {
		vdb := mocks.NewVectorDB()
		vdb.Err = errors.New("unreachable")
		svc, _ := newEmbeddingService(&mocks.Embedder{EmbeddingResult: []float32{1}}, vdb)

		_, err := svc.Sync(context.Background(), grogEntity())
		assert.Error(t, err)
	})

	t.Run("cancelled mid-sync", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		embedder := &mocks.Embedder{
			EmbedFunc: func(int, string, ports.EmbeddingTask) ([]float32, error) {
				cancel()
				return nil, errors.New("aborted")
			},
		}
		svc, _ := newEmbeddingService(embedder, mocks.NewVectorDB())

		_, err := svc.Sync(ctx, grogEntity())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEmbeddingService_Remove(t *testing.T) {
	vdb := mocks.NewVectorDB()
	vdb.AddChunk(entities.Chunk{ID: "a", EntityID: "grog"})
	vdb.AddChunk(entities.Chunk{ID: "b", EntityID: "pike"})
	svc, _ := newEmbeddingService(&mocks.Embedder{}, vdb)

	require.NoError(t, svc.Remove(context.Background(), "grog"))
	assert.Empty(t, vdb.ChunksFor("grog"))
	assert.Len(t, vdb.ChunksFor("pike"), 1)
}
