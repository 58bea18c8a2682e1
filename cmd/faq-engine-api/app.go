package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/api/rpc"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/assist"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/cache"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/config"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/feedback"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/matching"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/storage"
)

// app owns the process-wide resources behind the router.
type app struct {
	services *Services
	db       *sql.DB
	cache    cache.Client
}

// Close releases the database and cache connections.
func (a *app) Close() error {
	var firstErr error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// newApp opens storage, applies migrations and wires the engine services.
func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	migrator := storage.NewMigrationManager(db, cfg.Database.Driver, logger)
	if _, err := migrator.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	repos := storage.NewRepositories(db, cfg.Database.Driver, cfg.Matching.ConfidenceThreshold)

	var (
		cacheClient cache.Client
		publisher   cache.Publisher
	)
	switch cfg.Cache.Driver {
	case "redis":
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cacheClient = redisClient
		if cfg.Escalation.PublishEvents {
			publisher = redisClient
		}
	default:
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.MatchMetrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMatchMetrics(registry)
	}

	pool := matching.NewScoringPool(nil, cfg.Matching.Workers, cfg.Matching.Timeout, logger, metrics)
	engine := matching.NewEngine(
		logger,
		repos.FAQs,
		repos.Settings,
		matching.NewMatcher(pool, logger),
		cacheClient,
		metrics,
		matching.EngineConfig{
			DefaultThreshold: cfg.Matching.ConfidenceThreshold,
			SearchLimit:      cfg.Matching.SearchLimit,
			CacheResults:     cfg.Matching.CacheResults,
			CacheTTL:         cfg.Matching.CacheTTL,
		},
	)

	feedbackSvc := feedback.NewService(logger, repos.FAQs, repos.FAQs, metrics)
	escalations := escalation.NewService(logger, repos.Escalations, publisher, cfg.Escalation.Channel, metrics)
	assistant := assist.NewAssistant(logger, engine, feedbackSvc, escalations)

	svc := &Services{
		Searcher:    engine,
		Feedback:    feedbackSvc,
		Assistant:   assistant,
		Escalations: escalations,
		MatchRPC:    rpc.NewMatchService(logger, engine, assistant),
		DB:          db,
	}
	if registry != nil {
		svc.Metrics = registry
	}

	return &app{services: svc, db: db, cache: cacheClient}, nil
}
