// Package signal orchestrates the pipeline end to end: history in, feature
// tables through the trainers, artifacts into the registry, and fused
// predictions or backtests out. Batch entry points tolerate per-symbol
// failures; single-symbol entry points fail loudly.
package signal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/backtest"
	"alphasmith/internal/domain"
	"alphasmith/internal/ensemble"
	"alphasmith/internal/features"
	"alphasmith/internal/marketdata"
	"alphasmith/internal/metrics"
	"alphasmith/internal/model"
	"alphasmith/internal/registry"
	"alphasmith/internal/sentiment"
)

// ArtifactStore is the slice of the registry this service drives: artifact
// persistence plus the shared accuracy document.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, a *model.Artifact) (string, error)
	LoadArtifact(ctx context.Context, kind domain.ModelKind, horizonDays int) (*model.Artifact, error)
	UpdateAccuracy(ctx context.Context, key string, accuracy, std float64, samples int) error
	Accuracy(ctx context.Context, key string) (registry.Entry, bool, error)
}

// ResultSink receives finished predictions and backtests for persistence.
// A nil sink drops them; sink failures are logged, never fatal, because the
// caller already holds the result.
type ResultSink interface {
	SavePrediction(ctx context.Context, p *domain.EnsemblePrediction) error
	SaveBacktest(ctx context.Context, r *backtest.Result) error
}

// Weights adapts the accuracy registry to the fusion service's weight
// source. Lookup failures read as missing weights, which the fusion side
// already degrades around.
type Weights struct {
	Store ArtifactStore
}

func (w Weights) Accuracy(ctx context.Context, key string) (float64, bool) {
	e, ok, err := w.Store.Accuracy(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("accuracy lookup failed")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return e.Accuracy, true
}

type Config struct {
	Symbols        []string
	HistoryDays    int
	FetchWorkers   int
	Horizons       []int
	MinHistoryDays int
	Anomaly        features.AnomalyOptions
	BacktestDays   int
}

type Service struct {
	tracer    trace.Tracer
	rec       *metrics.Recorder
	provider  marketdata.Provider
	artifacts ArtifactStore
	sentiment sentiment.Provider
	engine    *features.Engine
	trainer   *model.Trainer
	fuser     *ensemble.Service
	sim       *backtest.Simulator
	sink      ResultSink
	cfg       Config
}

func NewService(
	tracer trace.Tracer,
	rec *metrics.Recorder,
	provider marketdata.Provider,
	artifacts ArtifactStore,
	sent sentiment.Provider,
	engine *features.Engine,
	trainer *model.Trainer,
	fuser *ensemble.Service,
	sim *backtest.Simulator,
	sink ResultSink,
	cfg Config,
) *Service {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = domain.DefaultWatchlist
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 900
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 6
	}
	if len(cfg.Horizons) == 0 {
		cfg.Horizons = domain.DefaultHorizons
	}
	if cfg.BacktestDays <= 0 {
		cfg.BacktestDays = 252
	}
	return &Service{
		tracer:    tracer,
		rec:       rec,
		provider:  provider,
		artifacts: artifacts,
		sentiment: sent,
		engine:    engine,
		trainer:   trainer,
		fuser:     fuser,
		sim:       sim,
		sink:      sink,
		cfg:       cfg,
	}
}

// buildTable assembles one symbol's feature table. horizon labels the rows
// when positive; prediction and backtest paths pass 0 and keep every row.
func (s *Service) buildTable(ctx context.Context, symbol string, bars, bench []domain.Bar, horizon int) (*features.Table, error) {
	opts := features.Options{
		Horizon:        horizon,
		MinHistoryDays: s.cfg.MinHistoryDays,
		Anomaly:        s.cfg.Anomaly,
		Sentiment:      s.sentimentSeries(ctx, symbol, bars),
	}
	return s.engine.Build(ctx, bars, bench, opts)
}

// sentimentSeries asks the configured provider for the window covered by
// bars. No provider, or a failed provider, means the neutral default.
func (s *Service) sentimentSeries(ctx context.Context, symbol string, bars []domain.Bar) []features.Point {
	if s.sentiment == nil || len(bars) == 0 {
		return nil
	}
	points, err := s.sentiment.Series(ctx, symbol, bars[0].Date, bars[len(bars)-1].Date)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment unavailable, defaulting to neutral")
		return nil
	}
	return points
}

// loadArtifacts fetches the trained model set for one horizon. Kinds with
// no artifact are skipped with a warning; an empty set is an error because
// nothing downstream can run.
func (s *Service) loadArtifacts(ctx context.Context, horizonDays int) ([]*model.Artifact, error) {
	arts := make([]*model.Artifact, 0, len(domain.AllModelKinds))
	for _, kind := range domain.AllModelKinds {
		a, err := s.artifacts.LoadArtifact(ctx, kind, horizonDays)
		if err != nil {
			log.Warn().Err(err).
				Str("model", string(kind)).
				Int("horizon_days", horizonDays).
				Msg("model artifact unavailable")
			continue
		}
		arts = append(arts, a)
	}
	if len(arts) == 0 {
		return nil, fmt.Errorf("no trained models for horizon %dd, run training first", horizonDays)
	}
	return arts, nil
}

// fetchAll pulls every configured symbol's history through the worker pool
// and returns the symbols that succeeded in sorted order.
func (s *Service) fetchAll(ctx context.Context) (map[string][]domain.Bar, []string, error) {
	histories := marketdata.FetchSet(ctx, s.provider, s.cfg.Symbols, s.cfg.HistoryDays, s.cfg.FetchWorkers)
	if len(histories) == 0 {
		return nil, nil, fmt.Errorf("no history for any of %d symbols: %w", len(s.cfg.Symbols), domain.ErrDataUnavailable)
	}
	symbols := make([]string, 0, len(histories))
	for symbol := range histories {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return histories, symbols, nil
}

// benchmark fetches the index series, degrading to none with a warning so
// a dead index feed costs the relative-strength columns, not the run.
func (s *Service) benchmark(ctx context.Context) []domain.Bar {
	bench, err := s.provider.IndexHistory(ctx, s.cfg.HistoryDays)
	if err != nil {
		log.Warn().Err(err).Msg("benchmark history unavailable, relative-strength features disabled")
		return nil
	}
	return bench
}

func (s *Service) observe(op string, start time.Time) {
	s.rec.ObserveDuration(op, time.Since(start).Seconds())
}

func lastClose(t *features.Table, i int) float64 {
	closes, ok := t.NumericByName("close")
	if !ok || i < 0 || i >= len(closes) {
		return 0
	}
	return closes[i]
}

func dateIndex(t *features.Table, date time.Time) int {
	for i := len(t.Dates) - 1; i >= 0; i-- {
		if t.Dates[i].Equal(date) {
			return i
		}
	}
	return -1
}
