package main

import (
	"context"
	"path/filepath"

	"github.com/rohankatakam/teamgraph/internal/cache"
	"github.com/rohankatakam/teamgraph/internal/config"
	"github.com/rohankatakam/teamgraph/internal/embedding"
	"github.com/rohankatakam/teamgraph/internal/graph"
	"github.com/rohankatakam/teamgraph/internal/identity"
	"github.com/rohankatakam/teamgraph/internal/llm"
	"github.com/rohankatakam/teamgraph/internal/storage"
)

// validate fails on configuration errors and logs warnings
func validate(ctx config.ValidationContext) error {
	result := cfg.Validate(ctx)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	return result.Err()
}

func openGraph(ctx context.Context) (*graph.Neo4jStore, error) {
	batch := graph.DefaultBatchConfig()
	if cfg.Ingest.NodeBatchSize > 0 {
		batch.NodeBatchSize = cfg.Ingest.NodeBatchSize
	}
	return graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
		URI:          cfg.Neo4j.URI,
		User:         cfg.Neo4j.User,
		Password:     cfg.Neo4j.Password,
		Database:     cfg.Neo4j.Database,
		MaxPoolSize:  cfg.Neo4j.MaxPoolSize,
		BatchConfig:  batch,
		QueryTimeout: cfg.Neo4j.QueryTimeout,
	})
}

// openEmbedder builds the configured provider behind the shared Redis cache
// when REDIS_URL is set, else the local bbolt cache. A cache that cannot be
// opened is logged and skipped.
func openEmbedder(ctx context.Context) (*embedding.Embedder, func(), error) {
	provider, err := embedding.New(ctx, embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		OpenAIKey:  cfg.LLM.OpenAIKey,
		GeminiKey:  cfg.LLM.GeminiKey,
		BaseURL:    cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	var c cache.Cache
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			logger.WithError(err).Warn("Redis cache unavailable, embedding without cache")
		} else {
			c = rc
		}
	} else if cfg.Cache.Directory != "" {
		bc, err := cache.OpenBoltCache(filepath.Join(cfg.Cache.Directory, "embeddings.db"))
		if err != nil {
			logger.WithError(err).Warn("Local cache unavailable, embedding without cache")
		} else {
			c = bc
		}
	}

	opts := embedding.DefaultOptions()
	if cfg.Embedding.BatchSize > 0 {
		opts.BatchSize = cfg.Embedding.BatchSize
	}
	closer := func() {}
	if c != nil {
		closer = func() { _ = c.Close() }
	}
	return embedding.NewEmbedder(provider, c, opts), closer, nil
}

// openGenerator returns nil without error when no generation key is set so
// queries can still retrieve.
func openGenerator(ctx context.Context) (llm.Generator, error) {
	if cfg.LLM.Provider == "" && cfg.LLM.OpenAIKey == "" && cfg.LLM.GeminiKey == "" {
		logger.Warn("No generation provider configured, answering with retrieved context only")
		return nil, nil
	}

	var limiter *llm.RateLimiter
	if cfg.Cache.RedisURL != "" {
		rl, err := llm.NewRateLimiterFromURL(ctx, cfg.Cache.RedisURL, "teamgraph:llm")
		if err != nil {
			logger.WithError(err).Warn("Rate limiter unavailable, continuing without quota guard")
		} else {
			limiter = rl
		}
	}

	return llm.NewGenerator(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		OpenAIKey:   cfg.LLM.OpenAIKey,
		GeminiKey:   cfg.LLM.GeminiKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
	}, limiter)
}

func openStaging() (*storage.SQLStore, error) {
	return storage.Open(cfg.Staging.Driver, cfg.Staging.DSN, logger)
}

// loadCrossReference prefers the flag, then the configured path. No table
// means people are linked by exact login only.
func loadCrossReference(path string) (*identity.CrossReference, error) {
	if path == "" {
		path = cfg.Ingest.CrossReferencePath
	}
	if path == "" {
		return nil, nil
	}
	xref, err := identity.LoadCrossReference(path)
	if err != nil {
		return nil, err
	}
	logger.WithField("entries", xref.Len()).Info("Loaded identity cross-reference")
	return xref, nil
}
