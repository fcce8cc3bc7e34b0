package model

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/domain"
	"alphasmith/internal/features"
)

// Config tunes a Trainer. Zero fields fall back to defaults.
type Config struct {
	Folds      int
	MinSamples int
	Overrides  map[string]PolicyOverride
}

// Trainer runs the supervised pass for one (kind, horizon) pair: schema
// capture, clean-row extraction, expanding-window cross-validation, then a
// final fit on every clean row. The CV mean/std pair is the trust signal
// the ensemble weighs models by.
type Trainer struct {
	tracer trace.Tracer
	cfg    Config
}

func NewTrainer(tracer trace.Tracer, cfg Config) *Trainer {
	if cfg.Folds <= 0 {
		cfg.Folds = 5
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	return &Trainer{tracer: tracer, cfg: cfg}
}

// Train fits one model on a pooled labeled table. The table is consumed:
// all-NaN columns are dropped from it before the schema is captured.
func (tr *Trainer) Train(ctx context.Context, tab *features.Table, kind domain.ModelKind, horizonDays int) (*Artifact, domain.TrainReport, error) {
	_, span := tr.tracer.Start(ctx, "model.train")
	defer span.End()

	var report domain.TrainReport
	if !kind.Valid() {
		return nil, report, fmt.Errorf("unknown model kind %q", kind)
	}
	if horizonDays <= 0 {
		return nil, report, fmt.Errorf("horizon %d must be positive", horizonDays)
	}

	if dropped := tab.DropAllNaNNumeric(); len(dropped) > 0 {
		log.Warn().Str("model_kind", string(kind)).Strs("columns", dropped).
			Msg("dropped all-NaN feature columns before training")
	}

	schema := BuildSchema(tab)
	ds, err := BuildDataset(tab, schema, tr.cfg.MinSamples)
	if err != nil {
		return nil, report, err
	}

	opts := resolvePolicy(kind, horizonDays, tr.cfg.Overrides)
	mean, std, folds, err := CrossValidate(kind, ds, opts, tr.cfg.Folds)
	if err != nil {
		return nil, report, fmt.Errorf("cross-validate %s: %w", domain.RegistryKey(kind, horizonDays), err)
	}
	for _, f := range folds {
		log.Debug().Str("model_kind", string(kind)).Int("horizon_days", horizonDays).
			Int("fold", f.Fold).Int("train_rows", f.TrainRows).Int("val_rows", f.ValRows).
			Float64("accuracy", f.Accuracy).Msg("fold validated")
	}

	// Round search needs rows to spare for its holdout; small pools keep
	// the configured count.
	if len(ds.X) >= 2*tr.cfg.MinSamples {
		if rounds := searchRounds(kind, ds, opts); rounds != opts.Rounds {
			log.Debug().Str("model_kind", string(kind)).Int("horizon_days", horizonDays).
				Int("configured", opts.Rounds).Int("chosen", rounds).Msg("round search trimmed boosting rounds")
			opts.Rounds = rounds
		}
	}

	final, err := TrainBooster(kind, ds.X, ds.Y, ds.Names, opts)
	if err != nil {
		return nil, report, fmt.Errorf("final fit %s: %w", domain.RegistryKey(kind, horizonDays), err)
	}

	now := time.Now().UTC()
	artifact := &Artifact{
		SchemaVersion: ArtifactVersion,
		Kind:          kind,
		HorizonDays:   horizonDays,
		CreatedAt:     now,
		Accuracy:      mean,
		AccuracyStd:   std,
		BoostRounds:   opts.Rounds,
		Schema:        schema,
		booster:       final,
	}
	report = domain.TrainReport{
		Kind:        kind,
		HorizonDays: horizonDays,
		Symbols:     tableSymbols(tab),
		Rows:        len(ds.X),
		Features:    schema.Width(),
		Folds:       len(folds),
		Accuracy:    mean,
		AccuracyStd: std,
		BoostRounds: opts.Rounds,
		TrainedFrom: ds.Dates[0],
		TrainedTo:   ds.Dates[len(ds.Dates)-1],
		TrainedAt:   now,
	}

	log.Info().Str("model_kind", string(kind)).Int("horizon_days", horizonDays).
		Int("rows", report.Rows).Int("features", report.Features).
		Float64("accuracy", mean).Float64("accuracy_std", std).
		Msg("model trained")
	return artifact, report, nil
}

func tableSymbols(t *features.Table) []string {
	col, ok := t.CategoricalByName("symbol")
	if !ok {
		if t.Symbol != "" {
			return []string{t.Symbol}
		}
		return nil
	}
	seen := make(map[string]struct{})
	var symbols []string
	for _, s := range col {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
