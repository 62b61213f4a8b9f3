package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

const testCampaign = "campaign-1"

// testEnv wires the domain services over in-memory mocks.
type testEnv struct {
	db         *mocks.RelationalDB
	vdb        *mocks.VectorDB
	embedder   *mocks.Embedder
	embeddings *services.EmbeddingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:       mocks.NewRelationalDB(),
		vdb:      mocks.NewVectorDB(),
		embedder: &mocks.Embedder{EmbeddingResult: []float32{1, 0}, Dims: 2},
	}
	env.embeddings = services.NewEmbeddingService(env.embedder, env.vdb, 0, zap.NewNop())
	return env
}

func (e *testEnv) addEntity(t *testing.T, name, entityType string, aliases ...string) *entities.Entity {
	t.Helper()
	ent := &entities.Entity{
		CampaignID: testCampaign,
		Name:       name,
		Type:       entityType,
		Content:    name + " is part of the story.",
		Aliases:    aliases,
	}
	require.NoError(t, e.db.CreateEntity(t.Context(), ent))
	return ent
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
