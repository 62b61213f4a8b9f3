package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimensions)
	assert.Equal(t, VectorStoreSQLite, cfg.VectorStore)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.ExtractionTimeout)
	assert.True(t, cfg.Extraction.RelationshipsEnabled())
}

func TestConfigDir(t *testing.T) {
	result := ConfigDir("/home/user/campaign")
	assert.Equal(t, "/home/user/campaign/.loregraph", result)
}

func TestConfigFilePath(t *testing.T) {
	result := ConfigFilePath("/home/user/campaign")
	assert.Equal(t, "/home/user/campaign/.loregraph/config.yaml", result)
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loregraph init")
	})

	t.Run("default file", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		dir := t.TempDir()
		require.NoError(t, WriteDefault(dir))

		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, "balanced", cfg.Extraction.Aggressiveness)
		assert.Equal(t, 45*time.Second, cfg.Server.ExtractionTimeout)
		assert.Equal(t, 10*time.Minute, cfg.Server.SpotlightTTL)
		assert.Equal(t, filepath.Join(dir, ".loregraph", "loregraph.db"), cfg.SQLite.Path)
		assert.False(t, cfg.EmbeddingsEnabled())
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(ConfigDir(dir), 0755))
		content := "embedder:\n  provider: jina\n  dimensions: 1024\nextraction:\n  extract_relationships: false\n"
		require.NoError(t, os.WriteFile(ConfigFilePath(dir), []byte(content), 0644))

		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, "jina", cfg.Embedder.Provider)
		assert.Equal(t, 1024, cfg.Embedder.Dimensions)
		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
		assert.False(t, cfg.Extraction.RelationshipsEnabled())
	})

	t.Run("environment overrides", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, WriteDefault(dir))
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("REDIS_ADDR", "cache:6379")
		t.Setenv("LOREGRAPH_EXTRACTION_TIMEOUT", "30s")

		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
		assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
		assert.Equal(t, "cache:6379", cfg.Redis.Addr)
		assert.Equal(t, 30*time.Second, cfg.Server.ExtractionTimeout)
		assert.True(t, cfg.EmbeddingsEnabled())
	})

	t.Run("provider specific keys", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(ConfigDir(dir), 0755))
		content := "llm:\n  provider: anthropic\nembedder:\n  provider: jina\n"
		require.NoError(t, os.WriteFile(ConfigFilePath(dir), []byte(content), 0644))
		t.Setenv("OPENAI_API_KEY", "sk-openai")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
		t.Setenv("JINA_API_KEY", "jina-key")

		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
		assert.Equal(t, "jina-key", cfg.Embedder.APIKey)
	})
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))

	err := WriteDefault(dir)
	require.Error(t, err)
	assert.True(t, Exists(dir))
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.VectorStore = VectorStoreQdrant
	cfg.Qdrant.Collection = "campaign_chunks"

	require.NoError(t, Write(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, VectorStoreQdrant, loaded.VectorStore)
	assert.Equal(t, "campaign_chunks", loaded.Qdrant.Collection)
	assert.Equal(t, 45*time.Second, loaded.Server.ExtractionTimeout)
}
