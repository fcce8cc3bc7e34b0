package signal

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/domain"
)

// PredictionLedger is the slice of the result repository the resolver
// works: listing due rows and writing their outcomes back.
type PredictionLedger interface {
	UnresolvedDue(ctx context.Context, cutoff time.Time, limit int) ([]domain.EnsemblePrediction, error)
	ResolvePrediction(ctx context.Context, symbol string, horizonDays int, asOf time.Time, actualUp, correct bool, realizedReturn float64) error
}

// RealizedBars looks up stored history so a prediction can be scored
// against what the market actually did.
type RealizedBars interface {
	BarsInRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error)
}

// Target dates land on weekends or holidays sometimes; scan a calendar
// window past the target and score against the first session in it.
const resolveWindowDays = 10

// Resolver grades stored predictions once their target session has passed:
// the realized close against the entry price decides the actual direction,
// and the up-probability decides whether the call was right.
type Resolver struct {
	tracer trace.Tracer
	ledger PredictionLedger
	bars   RealizedBars
}

func NewResolver(tracer trace.Tracer, ledger PredictionLedger, bars RealizedBars) *Resolver {
	return &Resolver{tracer: tracer, ledger: ledger, bars: bars}
}

// ResolveOutcomes scores up to limit due predictions. Rows whose realized
// close is not stored yet stay unresolved and are retried on a later pass.
func (r *Resolver) ResolveOutcomes(ctx context.Context, limit int) (int, error) {
	_, span := r.tracer.Start(ctx, "signal.resolve-outcomes")
	defer span.End()

	due, err := r.ledger.UnresolvedDue(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, p := range due {
		if p.Price <= 0 {
			log.Warn().Str("symbol", p.Symbol).Time("as_of", p.AsOf).Msg("prediction has no entry price, cannot score")
			continue
		}

		window, err := r.bars.BarsInRange(ctx, p.Symbol, p.TargetDate, p.TargetDate.AddDate(0, 0, resolveWindowDays))
		if err != nil {
			log.Warn().Err(err).Str("symbol", p.Symbol).Msg("realized close lookup failed")
			continue
		}
		if len(window) == 0 {
			log.Debug().Str("symbol", p.Symbol).Time("target", p.TargetDate).Msg("realized close not stored yet")
			continue
		}
		domain.SortBars(window)
		realized := window[0].Close

		actualUp := realized > p.Price
		predictedUp := p.UpProbability > 0.5
		realizedReturn := realized/p.Price - 1

		if err := r.ledger.ResolvePrediction(ctx, p.Symbol, p.HorizonDays, p.AsOf, actualUp, actualUp == predictedUp, realizedReturn); err != nil {
			log.Warn().Err(err).Str("symbol", p.Symbol).Time("as_of", p.AsOf).Msg("outcome write failed")
			continue
		}
		resolved++
	}
	return resolved, nil
}
