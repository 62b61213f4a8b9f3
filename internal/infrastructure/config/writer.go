package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# loregraph configuration

llm:
  provider: openai          # openai | anthropic
  model: gpt-4o-mini
  # api_key: your-api-key (or set OPENAI_API_KEY / ANTHROPIC_API_KEY)

embedder:
  provider: openai          # openai | jina
  model: text-embedding-3-small
  dimensions: 1536
  # api_key: your-api-key (or set OPENAI_API_KEY / JINA_API_KEY)
  # without a key, embeddings are skipped and search uses keywords

vector_store: sqlite        # sqlite | qdrant

qdrant:
  host: localhost
  port: 6334
  collection: loregraph_chunks

# redis:
#   addr: localhost:6379    # shared spotlight cache for multi-process deployments

server:
  addr: ":8080"
  extraction_timeout: 45s
  spotlight_ttl: 10m
  allowed_origins:
    - http://localhost:3000
    - http://localhost:5173

extraction:
  chunk_size: 4000
  max_chunks: 20
  parallel_batch_size: 3
  aggressiveness: balanced  # conservative | balanced | obsessive
  confidence_threshold: 0.5
  extract_relationships: true
  language: English

log:
  mode: development
  level: info
`

// WriteDefault creates the .loregraph directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	configDir := ConfigDir(basePath)
	configFile := filepath.Join(configDir, DefaultConfigFile)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Exists checks if a loregraph config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}
