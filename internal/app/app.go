// Package app wires configuration into the storage, embedder and tokenizer
// instances shared by the CLI and the MCP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/repoingest/internal/config"
	"github.com/dshills/repoingest/internal/embedder"
	"github.com/dshills/repoingest/internal/indexer"
	"github.com/dshills/repoingest/internal/storage"
	"github.com/dshills/repoingest/internal/tokenizer"
)

// App holds the long-lived dependencies of a process
type App struct {
	Config   *config.Config
	Storage  storage.Storage
	Embedder embedder.Embedder
	Counter  tokenizer.Counter
	Logger   *slog.Logger

	cache embedder.Cache
}

// Open creates the index directory, opens storage and builds the embedder
// and token counter for cfg
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cache, err := embedder.NewCache(ctx, embedder.CacheConfig{
		Backend:  cfg.Cache.Backend,
		Size:     cfg.Cache.Size,
		RedisURL: cfg.Cache.RedisURL,
		TTL:      cfg.Cache.TTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
	}

	emb, err := embedder.New(ctx, embedder.Config{
		Provider:   cfg.EmbeddingProvider,
		APIKey:     cfg.APIKey(),
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
	}, cache)
	if err != nil {
		_ = store.Close()
		if cache != nil {
			_ = cache.Close()
		}
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	counter, strategy, err := tokenizer.Resolve(cfg.EmbeddingModel)
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		if cache != nil {
			_ = cache.Close()
		}
		return nil, err
	}
	if strategy != tokenizer.StrategyModel {
		logger.Warn("no tokenizer for embedding model, using fallback",
			"model", cfg.EmbeddingModel, "strategy", strategy)
	}

	logger.Debug("app initialized",
		"database", cfg.DatabasePath(),
		"provider", emb.Provider(),
		"model", emb.Model(),
		"dimensions", emb.Dimension(),
		"cache", cfg.Cache.Backend)

	return &App{
		Config:   cfg,
		Storage:  store,
		Embedder: emb,
		Counter:  counter,
		Logger:   logger,
		cache:    cache,
	}, nil
}

// RunOptions overrides configuration for a single ingestion run
type RunOptions struct {
	Extensions []string
	MaxTokens  int
	Collection string
}

// NewIndexer builds an indexer writing into storage through a StoreSink
func (a *App) NewIndexer(opts RunOptions) (*indexer.Indexer, *indexer.StoreSink, error) {
	exts := a.Config.Extensions
	if len(opts.Extensions) > 0 {
		exts = config.NormalizeExtensions(opts.Extensions)
	}
	maxTokens := a.Config.MaxTokensPerBatch
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	collection := a.Config.CollectionName
	if opts.Collection != "" {
		collection = opts.Collection
	}

	sink := indexer.NewStoreSink(a.Storage, a.Embedder, collection, a.Logger)
	idx, err := indexer.New(indexer.Config{
		Extensions: exts,
		MaxTokens:  maxTokens,
		MaxChunks:  a.Config.MaxChunksPerBatch,
		Counter:    a.Counter,
		Logger:     a.Logger,
	}, sink)
	if err != nil {
		return nil, nil, err
	}
	return idx, sink, nil
}

// Close releases storage, embedder and cache
func (a *App) Close() error {
	var firstErr error
	if err := a.Embedder.Close(); err != nil {
		firstErr = err
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Storage.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
