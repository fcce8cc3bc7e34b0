package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"alphasmith/internal/domain"
	"alphasmith/internal/features"
)

// TrainAll runs every configured horizon across every model kind: one
// shared feature pool per horizon, one artifact and one accuracy-registry
// entry per (kind, horizon). A failed run is logged and skipped; TrainAll
// errors only when nothing trained at all.
func (s *Service) TrainAll(ctx context.Context) ([]domain.TrainReport, error) {
	ctx, span := s.tracer.Start(ctx, "signal.train-all")
	defer span.End()
	defer s.observe("train_all", time.Now())

	histories, symbols, err := s.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	bench := s.benchmark(ctx)

	reports := make([]domain.TrainReport, 0, len(s.cfg.Horizons)*len(domain.AllModelKinds))
	failed := 0
	for _, horizon := range s.cfg.Horizons {
		pool, err := s.trainingPool(ctx, histories, symbols, bench, horizon)
		if err != nil {
			log.Error().Err(err).Int("horizon_days", horizon).Msg("feature pool build failed")
			failed += len(domain.AllModelKinds)
			continue
		}
		for _, kind := range domain.AllModelKinds {
			report, err := s.trainOne(ctx, pool, kind, horizon)
			if err != nil {
				failed++
				s.rec.RecordTrainingRun(string(kind), "error")
				log.Error().Err(err).
					Str("model", string(kind)).
					Int("horizon_days", horizon).
					Msg("training run failed")
				continue
			}
			s.rec.RecordTrainingRun(string(kind), "ok")
			s.rec.SetTrainingAccuracy(domain.RegistryKey(kind, horizon), report.Accuracy)
			reports = append(reports, report)
		}
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("all %d training runs failed", failed)
	}
	return reports, nil
}

// trainingPool builds and concatenates the labeled per-symbol tables for
// one horizon. Symbols with degraded (too short) histories are logged and
// left out so they cannot poison the pooled schema.
func (s *Service) trainingPool(ctx context.Context, histories map[string][]domain.Bar, symbols []string, bench []domain.Bar, horizon int) (*features.Table, error) {
	tables := make([]*features.Table, 0, len(symbols))
	for _, symbol := range symbols {
		tab, err := s.buildTable(ctx, symbol, histories[symbol], bench, horizon)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("feature build failed, symbol skipped")
			continue
		}
		if tab.Degraded {
			log.Warn().
				Str("symbol", symbol).
				Int("days", tab.Rows()).
				Msg("history too short for derived features, symbol skipped")
			continue
		}
		tables = append(tables, tab)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no symbol produced a usable feature table: %w", domain.ErrInsufficientSamples)
	}
	return features.Concat(tables...)
}

func (s *Service) trainOne(ctx context.Context, pool *features.Table, kind domain.ModelKind, horizon int) (domain.TrainReport, error) {
	artifact, report, err := s.trainer.Train(ctx, pool, kind, horizon)
	if err != nil {
		return domain.TrainReport{}, err
	}
	path, err := s.artifacts.SaveArtifact(ctx, artifact)
	if err != nil {
		return domain.TrainReport{}, fmt.Errorf("persist %s artifact: %w", kind, err)
	}
	key := domain.RegistryKey(kind, horizon)
	if err := s.artifacts.UpdateAccuracy(ctx, key, report.Accuracy, report.AccuracyStd, report.Rows); err != nil {
		return domain.TrainReport{}, fmt.Errorf("record %s accuracy: %w", key, err)
	}
	log.Info().Str("key", key).Str("path", path).Msg("artifact saved")
	return report, nil
}
