package jina

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e, err := NewEmbedder(config.EmbedderConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Dimensions: 3,
	}, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestNewEmbedder_MissingKey(t *testing.T) {
	e, err := NewEmbedder(config.EmbedderConfig{}, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, e)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e, err := NewEmbedder(config.EmbedderConfig{APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, VectorSize, e.Dimensions())
	assert.Equal(t, DefaultModel, e.model)
	assert.Equal(t, DefaultBaseURL, e.baseURL)
}

func TestEmbed_SendsTaskAndDimensions(t *testing.T) {
	var got embeddingRequest
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	})

	vector, err := e.Embed(t.Context(), "Grog the barbarian", ports.TaskQuery)
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, "retrieval.query", got.Task)
	assert.Equal(t, 3, got.Dimensions)
	assert.Equal(t, []string{"Grog the barbarian"}, got.Input)
}

func TestEmbed_RateLimited(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := e.Embed(t.Context(), "text", ports.TaskPassage)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestEmbed_ServerError(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"bad input"}`))
	})

	_, err := e.Embed(t.Context(), "text", ports.TaskPassage)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Contains(t, err.Error(), "status 400")
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
	})

	_, err := e.Embed(t.Context(), "text", ports.TaskPassage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3")
}
