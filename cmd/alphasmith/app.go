package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/backtest"
	"alphasmith/internal/cache"
	"alphasmith/internal/config"
	"alphasmith/internal/domain"
	"alphasmith/internal/ensemble"
	"alphasmith/internal/features"
	"alphasmith/internal/marketdata"
	"alphasmith/internal/metrics"
	"alphasmith/internal/model"
	"alphasmith/internal/registry"
	"alphasmith/internal/repository"
	"alphasmith/internal/sentiment"
	"alphasmith/internal/signal"
	"alphasmith/pkg/logging"
	"alphasmith/pkg/tracing"
)

// app holds every wired component for one process. Close releases them in
// reverse construction order.
type app struct {
	cfg    *config.Config
	tracer trace.Tracer
	rec    *metrics.Recorder

	cache      cache.Service
	pool       *pgxpool.Pool
	barRepo    *repository.BarRepository
	resultRepo *repository.ResultRepository

	client   *marketdata.Client
	provider marketdata.Provider
	engine   *features.Engine
	pipeline *signal.Service

	shutdown []func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	tp, tracer, err := tracing.InitTracer(ctx, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &app{cfg: cfg, tracer: tracer, rec: metrics.New()}
	a.shutdown = append(a.shutdown, tp.Shutdown)

	if cfg.Redis.Enabled {
		redis, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.cache = redis
	} else {
		a.cache = cache.NewMemory()
	}
	a.shutdown = append(a.shutdown, func(context.Context) error { return a.cache.Close() })

	if cfg.Postgres.Enabled && cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		a.shutdown = append(a.shutdown, func(context.Context) error { pool.Close(); return nil })

		a.barRepo = repository.NewBarRepository(pool, tracer)
		a.resultRepo = repository.NewResultRepository(pool, tracer)
		if err := a.barRepo.RunMigrations(ctx); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("migrate bars: %w", err)
		}
		if err := a.resultRepo.RunMigrations(ctx); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("migrate results: %w", err)
		}
	}

	a.client = marketdata.NewClient(tracer, a.rec, cfg.Data, cfg.Benchmark)
	switch {
	case offline && a.barRepo == nil:
		a.Close(ctx)
		return nil, errors.New("offline mode needs postgres enabled")
	case offline:
		a.provider = marketdata.NewStore(a.barRepo, cfg.Benchmark)
	default:
		a.provider = marketdata.NewCached(a.client, a.cache, cfg.Data.CacheTTL, a.rec)
	}

	artifacts := registry.NewStore(cfg.Training.ArtifactsDir, tracer)

	var sent sentiment.Provider
	if cfg.Sentiment.Enabled && cfg.Sentiment.APIKey != "" {
		sent = sentiment.NewLLM(tracer, sentiment.NewOpenAIClient(cfg.Sentiment.APIKey), cfg.Sentiment.OpenAIModel)
	} else if cfg.Sentiment.Enabled {
		log.Println("sentiment enabled but no API key set, features default to neutral")
	}

	trainer := model.NewTrainer(tracer, model.Config{
		Folds:      cfg.Training.Folds,
		MinSamples: cfg.Training.MinSamples,
		Overrides:  policyOverrides(cfg.Training.Policies),
	})
	fuser := ensemble.NewService(signal.Weights{Store: artifacts}, ensemble.Config{
		Mode:            domain.FusionMode(cfg.Ensemble.Mode),
		HighThreshold:   cfg.Ensemble.HighThreshold,
		MediumThreshold: cfg.Ensemble.MediumThreshold,
		LongThreshold:   cfg.Ensemble.LongThreshold,
		ShortThreshold:  cfg.Ensemble.ShortThreshold,
	})
	sim := backtest.NewSimulator(tracer, a.rec, cfg.Backtest)

	// A nil repository must stay a nil interface, otherwise the pipeline
	// would call methods on a nil receiver.
	var sink signal.ResultSink
	if a.resultRepo != nil {
		sink = a.resultRepo
	}

	a.engine = features.NewEngine(tracer)
	a.pipeline = signal.NewService(tracer, a.rec, a.provider, artifacts, sent, a.engine, trainer, fuser, sim, sink, signal.Config{
		Symbols:        cfg.Watchlist,
		HistoryDays:    cfg.Data.HistoryDays,
		FetchWorkers:   cfg.Data.FetchWorkers,
		Horizons:       cfg.Training.Horizons,
		MinHistoryDays: cfg.Features.MinHistoryDays,
		Anomaly: features.AnomalyOptions{
			Enabled: cfg.Features.Anomaly,
			Warmup:  cfg.Features.AnomalyWarmup,
			Refit:   cfg.Features.AnomalyRefit,
		},
		BacktestDays: cfg.Backtest.Days,
	})

	return a, nil
}

func policyOverrides(policies map[string]config.PolicyConfig) map[string]model.PolicyOverride {
	if len(policies) == 0 {
		return nil
	}
	out := make(map[string]model.PolicyOverride, len(policies))
	for key, p := range policies {
		out[key] = model.PolicyOverride{
			Rounds:       p.Rounds,
			LearningRate: p.LearningRate,
			MaxDepth:     p.MaxDepth,
		}
	}
	return out
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}
