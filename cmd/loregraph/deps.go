package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/domain/services"
	"github.com/ersonp/lore-graph/internal/infrastructure/cache/memory"
	rediscache "github.com/ersonp/lore-graph/internal/infrastructure/cache/redis"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	"github.com/ersonp/lore-graph/internal/infrastructure/embedder/jina"
	openaiembedder "github.com/ersonp/lore-graph/internal/infrastructure/embedder/openai"
	"github.com/ersonp/lore-graph/internal/infrastructure/llm/anthropic"
	openaillm "github.com/ersonp/lore-graph/internal/infrastructure/llm/openai"
	"github.com/ersonp/lore-graph/internal/infrastructure/logging"
	"github.com/ersonp/lore-graph/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/lore-graph/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config              *config.Config
	Logger              *zap.Logger
	InitHandler         *handlers.InitHandler
	IngestHandler       *handlers.IngestHandler
	CommitHandler       *handlers.CommitHandler
	QueryHandler        *handlers.QueryHandler
	EntityHandler       *handlers.EntityHandler
	RelationshipHandler *handlers.RelationshipHandler
}

// withCampaignDeps is withDeps for commands that operate on one campaign.
func withCampaignDeps(ctx context.Context, fn func(*Deps) error) error {
	if globalCampaign == "" {
		return errors.New("campaign is required (use --campaign flag)")
	}
	return withDeps(ctx, fn)
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	relationalDB, err := sqlite.NewRepository(cfg.SQLite)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer relationalDB.Close()

	if err := relationalDB.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	var (
		vectorDB    ports.VectorDB
		collections ports.CollectionManager
	)
	switch cfg.VectorStore {
	case config.VectorStoreQdrant:
		repo, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer repo.Close()
		vectorDB, collections = repo, repo
	default:
		vectorDB = sqlite.NewChunkRepository(relationalDB)
	}

	emb, err := newEmbedder(cfg.Embedder, logger)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	vectorSize := uint64(cfg.Embedder.Dimensions)
	if emb != nil {
		vectorSize = uint64(emb.Dimensions())
	} else {
		logger.Info("no embedding credential configured, semantic search disabled")
	}

	extractor, err := newExtractor(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	cache, closeCache, err := newCache(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer closeCache()

	embeddings := services.NewEmbeddingService(emb, vectorDB, cfg.Embedder.MaxRetries, logger)
	extraction := services.NewExtractionService(extractor, relationalDB, cfg.Server.ExtractionTimeout, logger)

	deps := &Deps{
		Config:        cfg,
		Logger:        logger,
		InitHandler:   handlers.NewInitHandler(relationalDB, collections, vectorSize),
		IngestHandler: handlers.NewIngestHandler(extraction, handlers.SettingsFromConfig(cfg.Extraction)),
		CommitHandler: handlers.NewCommitHandler(services.NewCommitService(relationalDB, embeddings, logger)),
		QueryHandler:  handlers.NewQueryHandler(services.NewQueryService(embeddings, vectorDB, logger)),
		EntityHandler: handlers.NewEntityHandler(
			services.NewEntityService(relationalDB, embeddings, logger),
			services.NewMergeService(relationalDB, embeddings, logger),
			services.NewDuplicateFinder(relationalDB),
			services.NewSpotlightService(relationalDB, cache, cfg.Server.SpotlightTTL, logger),
		),
		RelationshipHandler: handlers.NewRelationshipHandler(services.NewRelationshipService(relationalDB), relationalDB),
	}

	return fn(deps)
}

// newEmbedder returns nil when no credential is configured, which turns
// semantic search off instead of failing.
func newEmbedder(cfg config.EmbedderConfig, logger *zap.Logger) (ports.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "jina":
		return jina.NewEmbedder(cfg, logger)
	case "openai", "":
		return openaiembedder.NewEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func newExtractor(cfg config.LLMConfig) (ports.Extractor, error) {
	if cfg.APIKey == "" {
		return unconfiguredExtractor{provider: cfg.Provider}, nil
	}
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(cfg)
	case "openai", "":
		return openaillm.NewClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// unconfiguredExtractor lets commands that never extract run without an
// llm credential.
type unconfiguredExtractor struct {
	provider string
}

func (u unconfiguredExtractor) Extract(context.Context, ports.ExtractionRequest) (*ports.ExtractionResponse, error) {
	return nil, fmt.Errorf("%s api key is not configured", u.provider)
}

// newCache uses redis when an address is configured and an in-process
// cache otherwise.
func newCache(ctx context.Context, cfg config.RedisConfig) (ports.Cache, func(), error) {
	client, err := rediscache.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return memory.New(), func() {}, nil
	}
	return rediscache.New(client), func() { _ = client.Close() }, nil
}
