package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taxoclass/internal/config"
	"github.com/kailas-cloud/taxoclass/internal/db"
	dbRedis "github.com/kailas-cloud/taxoclass/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/taxoclass/internal/db/sqlite"
	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
	logpkg "github.com/kailas-cloud/taxoclass/internal/logger"
	"github.com/kailas-cloud/taxoclass/internal/metrics"
	catrepo "github.com/kailas-cloud/taxoclass/internal/repository/category"
	"github.com/kailas-cloud/taxoclass/internal/repository/embcache"
	"github.com/kailas-cloud/taxoclass/internal/repository/embrecord"
	exclrepo "github.com/kailas-cloud/taxoclass/internal/repository/exclusion"
	"github.com/kailas-cloud/taxoclass/internal/repository/idmap"
	prodrepo "github.com/kailas-cloud/taxoclass/internal/repository/product"
	profrepo "github.com/kailas-cloud/taxoclass/internal/repository/profile"
	"github.com/kailas-cloud/taxoclass/internal/resilience/breaker"
	"github.com/kailas-cloud/taxoclass/internal/resilience/retry"
	openaiEmb "github.com/kailas-cloud/taxoclass/internal/transport/openai"
	catalogu "github.com/kailas-cloud/taxoclass/internal/usecase/catalog"
	classifyuc "github.com/kailas-cloud/taxoclass/internal/usecase/classify"
	embeddinguc "github.com/kailas-cloud/taxoclass/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/taxoclass/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/taxoclass/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/taxoclass/internal/usecase/search"
	"github.com/kailas-cloud/taxoclass/internal/vectorindex"
)

// app is the composition root shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  db.Store
	index  *vectorindex.Index

	resilient *embeddinguc.ResilientEmbedder

	catalog  *catalogu.Service
	classify *classifyuc.Service
	indexing *indexinguc.Service
	search   *searchuc.Service
	health   *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, env string) (*app, error) {
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	domain.KeyPrefix = cfg.Storage.KeyPrefix

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterClassificationMetrics()

	hasher, err := semhash.New(semhash.Language(cfg.SemanticHash.Language))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("semantic hasher: %w", err)
	}

	resilient := buildResilient(cfg.Embedding, logger)
	docEmbedder := buildEmbedder(cfg.Embedding, resilient, cfg.Embedding.Instruction.Document, store, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, resilient, cfg.Embedding.Instruction.Query, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("fallback", cfg.Embedding.Fallback),
	)

	categories := catrepo.New(store)
	profiles := profrepo.New(store)
	products := prodrepo.New(store)
	exclusions := exclrepo.New(store)
	index := vectorindex.New(idmap.New(store), store, cfg.Index.BlobKey)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		index:     index,
		resilient: resilient,
		catalog: catalogu.New(categories, profiles, products, exclusions, hasher,
			logpkg.Component(logger, "catalog")),
		classify: classifyuc.New(products, profiles, exclusions, queryEmbedder, index, classifyuc.Config{
			DefaultTopK:    cfg.Classification.DefaultTopK,
			MaxTopK:        cfg.Classification.MaxTopK,
			OverfetchMul:   cfg.Classification.OverfetchMul,
			OverfetchFloor: cfg.Classification.OverfetchFloor,
		}, logpkg.Component(logger, "classify")),
		indexing: indexinguc.New(categories, profiles, embrecord.New(store), docEmbedder, index, hasher,
			cfg.Embedding.Dimensions, logpkg.Component(logger, "indexing")),
		search: searchuc.New(index, categories, queryEmbedder),
		health: healthuc.New(store, resilient, resilient, index),
	}
	return a, nil
}

// prepareIndex restores the persisted snapshot and/or rebuilds per config.
// An empty index is still initialized so classification fails with
// "no eligible matches" instead of "index not ready".
func (a *app) prepareIndex(ctx context.Context) error {
	restored := false
	if a.cfg.Index.LoadOnStart {
		ok, err := a.indexing.Restore(ctx)
		if err != nil {
			return fmt.Errorf("restore index: %w", err)
		}
		restored = ok
		a.logger.Info("Index restore", zap.Bool("restored", ok), zap.Int("size", a.index.Len()))
	}

	if a.cfg.Index.RebuildOnStart || !restored {
		n, err := a.indexing.Rebuild(ctx)
		if err != nil {
			if !a.cfg.Index.RebuildOnStart {
				// Сервис стартует с пустым индексом; rebuild можно повторить через API.
				a.logger.Warn("Initial index build failed", zap.Error(err))
				return nil
			}
			return fmt.Errorf("rebuild index: %w", err)
		}
		a.logger.Info("Index built", zap.Int("categories", n))
	}
	return nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		// rueidis speaks to both; only core commands are used.
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Addrs,
			Password:   cfg.Password,
			DB:         cfg.DB,
			ClientName: "taxoclass",
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := dbSQLite.NewStore(ctx, dbSQLite.Config{Path: cfg.SQLitePath})
		if err != nil {
			return nil, fmt.Errorf("create sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildResilient creates the single breaker-guarded provider shared by the
// document and query chains.
func buildResilient(cfg config.EmbeddingConfig, logger *zap.Logger) *embeddinguc.ResilientEmbedder {
	var base domain.Embedder
	if !cfg.Fallback {
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			Dimensions:   cfg.Dimensions,
			Provider:     cfg.Provider,
			Timeout:      cfg.Timeout(),
			RateLimitRPS: cfg.RateLimitRPS,
			RateBurst:    cfg.RateBurst,
			Logger:       logpkg.Component(logger, "openai"),
		})
	}

	return embeddinguc.NewResilientEmbedder(base, embeddinguc.ResilientConfig{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Fallback:   cfg.Fallback,
		Retry: retry.Config{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay(),
			MaxDelay:  cfg.Retry.MaxDelay(),
		},
		Breaker: breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout()),
		Logger:  logpkg.Component(logger, "embedding"),
	})
}

// buildEmbedder assembles the decorator chain: Resilient -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	resilient *embeddinguc.ResilientEmbedder,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.EmbeddingService {
	var embedder domain.Embedder = resilient

	// Fallback vectors are free to compute, caching them only costs storage.
	if cfg.CacheEnabled && !cfg.Fallback {
		embedder = embcache.New(embedder, store, cfg.Model, cfg.Dimensions, metrics.EmbeddingCacheTotal, logger)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)

	// Instruction prefix is outermost: the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(instrumented, instruction)
	}
	return instrumented
}
