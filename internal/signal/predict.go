package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"alphasmith/internal/domain"
	"alphasmith/internal/ensemble"
	"alphasmith/internal/model"
)

// Predict fuses the trained model set into one signal for a single symbol.
// Unlike the watchlist batch, any failure here is the caller's answer.
func (s *Service) Predict(ctx context.Context, symbol string, horizonDays int) (*domain.EnsemblePrediction, error) {
	ctx, span := s.tracer.Start(ctx, "signal.predict")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("horizon_days", horizonDays))

	arts, err := s.loadArtifacts(ctx, horizonDays)
	if err != nil {
		return nil, err
	}
	bars, err := s.provider.History(ctx, symbol, s.cfg.HistoryDays)
	if err != nil {
		return nil, err
	}
	return s.predictOne(ctx, arts, symbol, bars, s.benchmark(ctx), horizonDays)
}

// PredictAsOf scores a symbol as it would have been scored at the close of
// asOf. Bars after that session are discarded before the feature pipeline
// runs, so nothing later than asOf can leak into the signal.
func (s *Service) PredictAsOf(ctx context.Context, symbol string, asOf time.Time, horizonDays int) (*domain.EnsemblePrediction, error) {
	ctx, span := s.tracer.Start(ctx, "signal.predict-as-of")
	defer span.End()

	cutoff := domain.TradingDay(asOf)
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("as_of", cutoff.Format("2006-01-02")),
		attribute.Int("horizon_days", horizonDays),
	)

	arts, err := s.loadArtifacts(ctx, horizonDays)
	if err != nil {
		return nil, err
	}
	bars, err := s.provider.History(ctx, symbol, s.cfg.HistoryDays)
	if err != nil {
		return nil, err
	}
	bars = barsThrough(bars, cutoff)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no sessions on or before %s: %w",
			symbol, cutoff.Format("2006-01-02"), domain.ErrDataUnavailable)
	}
	return s.predictOne(ctx, arts, symbol, bars, barsThrough(s.benchmark(ctx), cutoff), horizonDays)
}

func barsThrough(bars []domain.Bar, cutoff time.Time) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Date.After(cutoff) {
			out = append(out, b)
		}
	}
	return out
}

// PredictWatchlist runs the configured symbols through the trained model
// set. Symbols that fail to fetch, build, or score are logged and omitted;
// the batch fails only when no model artifacts exist at all.
func (s *Service) PredictWatchlist(ctx context.Context, horizonDays int) ([]*domain.EnsemblePrediction, error) {
	ctx, span := s.tracer.Start(ctx, "signal.predict-watchlist")
	defer span.End()
	defer s.observe("predict_watchlist", time.Now())

	arts, err := s.loadArtifacts(ctx, horizonDays)
	if err != nil {
		return nil, err
	}
	histories, symbols, err := s.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	bench := s.benchmark(ctx)

	preds := make([]*domain.EnsemblePrediction, 0, len(symbols))
	for _, symbol := range symbols {
		pred, err := s.predictOne(ctx, arts, symbol, histories[symbol], bench, horizonDays)
		if err != nil {
			s.rec.RecordError("predict")
			log.Warn().Err(err).Str("symbol", symbol).Msg("prediction failed, symbol omitted")
			continue
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func (s *Service) predictOne(ctx context.Context, arts []*model.Artifact, symbol string, bars, bench []domain.Bar, horizonDays int) (*domain.EnsemblePrediction, error) {
	tab, err := s.buildTable(ctx, symbol, bars, bench, 0)
	if err != nil {
		return nil, err
	}
	if tab.Degraded {
		return nil, fmt.Errorf("%s: %d days of history is below the feature minimum: %w",
			symbol, tab.Rows(), domain.ErrDataUnavailable)
	}

	results := make([]domain.ModelResult, 0, len(arts))
	var asOf time.Time
	for _, art := range arts {
		r, date, err := art.PredictLatest(tab)
		if err != nil {
			log.Warn().Err(err).
				Str("symbol", symbol).
				Str("model", string(art.Kind)).
				Msg("sub-model prediction failed")
			continue
		}
		results = append(results, r)
		if date.After(asOf) {
			asOf = date
		}
	}

	pred, err := s.fuser.Fuse(ctx, ensemble.Input{
		Symbol:      symbol,
		AsOf:        asOf,
		Price:       lastClose(tab, dateIndex(tab, asOf)),
		HorizonDays: horizonDays,
		Results:     results,
	})
	if err != nil {
		return nil, err
	}
	s.rec.RecordPrediction(string(pred.Direction))
	if s.sink != nil {
		if err := s.sink.SavePrediction(ctx, pred); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("prediction sink write failed")
		}
	}
	return pred, nil
}
