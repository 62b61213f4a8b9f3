// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for loregraph configuration.
	DefaultConfigDir = ".loregraph"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the SQLite file used when sqlite.path is unset.
	DefaultDatabaseFile = "loregraph.db"
)

// Vector store backends.
const (
	VectorStoreSQLite = "sqlite"
	VectorStoreQdrant = "qdrant"
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	LLM         LLMConfig        `yaml:"llm,omitempty"`
	Embedder    EmbedderConfig   `yaml:"embedder,omitempty"`
	VectorStore string           `yaml:"vector_store,omitempty" env:"LOREGRAPH_VECTOR_STORE"`
	Qdrant      QdrantConfig     `yaml:"qdrant,omitempty"`
	SQLite      SQLiteConfig     `yaml:"sqlite,omitempty"`
	Redis       RedisConfig      `yaml:"redis,omitempty"`
	Server      ServerConfig     `yaml:"server,omitempty"`
	Extraction  ExtractionConfig `yaml:"extraction,omitempty"`
	Log         LogConfig        `yaml:"log,omitempty"`
}

// LLMConfig holds configuration for the extraction model provider.
type LLMConfig struct {
	Provider  string `yaml:"provider,omitempty" env:"LOREGRAPH_LLM_PROVIDER"`
	Model     string `yaml:"model,omitempty" env:"LOREGRAPH_LLM_MODEL"`
	APIKey    string `yaml:"api_key,omitempty" env:"LOREGRAPH_LLM_API_KEY"`
	BaseURL   string `yaml:"base_url,omitempty" env:"LOREGRAPH_LLM_BASE_URL"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider   string `yaml:"provider,omitempty" env:"LOREGRAPH_EMBEDDER_PROVIDER"`
	Model      string `yaml:"model,omitempty" env:"LOREGRAPH_EMBEDDER_MODEL"`
	APIKey     string `yaml:"api_key,omitempty" env:"LOREGRAPH_EMBEDDER_API_KEY"`
	BaseURL    string `yaml:"base_url,omitempty" env:"LOREGRAPH_EMBEDDER_BASE_URL"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty" env:"QDRANT_HOST"`
	Port       int    `yaml:"port,omitempty" env:"QDRANT_PORT"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty" env:"QDRANT_API_KEY"`
}

// SQLiteConfig holds configuration for the SQLite graph store.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. ":memory:" is accepted.
	Path string `yaml:"path,omitempty" env:"LOREGRAPH_SQLITE_PATH"`
}

// RedisConfig holds configuration for the shared cache. An empty Addr
// selects the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" env:"REDIS_ADDR"`
	Password string `yaml:"password,omitempty" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db,omitempty" env:"REDIS_DB"`
}

// ServerConfig holds configuration for the HTTP surface.
type ServerConfig struct {
	Addr              string        `yaml:"addr,omitempty" env:"LOREGRAPH_ADDR"`
	ExtractionTimeout time.Duration `yaml:"extraction_timeout,omitempty" env:"LOREGRAPH_EXTRACTION_TIMEOUT"`
	SpotlightTTL      time.Duration `yaml:"spotlight_ttl,omitempty"`
	AllowedOrigins    []string      `yaml:"allowed_origins,omitempty"`
}

// ExtractionConfig holds the default extraction settings.
type ExtractionConfig struct {
	ChunkSize            int     `yaml:"chunk_size,omitempty"`
	MaxChunks            int     `yaml:"max_chunks,omitempty"`
	ParallelBatchSize    int     `yaml:"parallel_batch_size,omitempty"`
	Aggressiveness       string  `yaml:"aggressiveness,omitempty"`
	ConfidenceThreshold  float64 `yaml:"confidence_threshold,omitempty"`
	ExtractRelationships *bool   `yaml:"extract_relationships,omitempty"`
	Language             string  `yaml:"language,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Mode  string `yaml:"mode,omitempty" env:"LOREGRAPH_LOG_MODE"`
	Level string `yaml:"level,omitempty" env:"LOREGRAPH_LOG_LEVEL"`
}

// Default returns a Config with default values.
func Default() *Config {
	extractRelationships := true
	return &Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 4096,
		},
		Embedder: EmbedderConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			MaxRetries: 3,
		},
		VectorStore: VectorStoreSQLite,
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "loregraph_chunks",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ExtractionTimeout: 45 * time.Second,
			SpotlightTTL:      10 * time.Minute,
			AllowedOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Extraction: ExtractionConfig{
			ChunkSize:            4000,
			MaxChunks:            20,
			ParallelBatchSize:    3,
			Aggressiveness:       "balanced",
			ConfidenceThreshold:  0.5,
			ExtractRelationships: &extractRelationships,
			Language:             "English",
		},
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}

// Load loads configuration from the .loregraph directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'loregraph init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(ConfigDir(basePath), DefaultDatabaseFile)
	}

	return cfg, nil
}

// applyEnvOverrides reads tagged environment variables, then fills empty
// credentials from the providers' conventional variables.
func (c *Config) applyEnvOverrides() error {
	if err := cleanenv.ReadEnv(c); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" && c.LLM.Provider == "openai" {
			c.LLM.APIKey = key
		}
		if c.Embedder.APIKey == "" && c.Embedder.Provider == "openai" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c.LLM.APIKey == "" && c.LLM.Provider == "anthropic" {
			c.LLM.APIKey = key
		}
	}
	if key := os.Getenv("JINA_API_KEY"); key != "" {
		if c.Embedder.APIKey == "" && c.Embedder.Provider == "jina" {
			c.Embedder.APIKey = key
		}
	}
	return nil
}

// EmbeddingsEnabled reports whether an embedding credential is configured.
func (c *Config) EmbeddingsEnabled() bool {
	return c.Embedder.APIKey != ""
}

// RelationshipsEnabled reads the extraction toggle, defaulting to true.
func (e ExtractionConfig) RelationshipsEnabled() bool {
	return e.ExtractRelationships == nil || *e.ExtractRelationships
}

// ConfigDir returns the path to the .loregraph config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}
