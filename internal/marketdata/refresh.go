package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/domain"
)

// BarWriter is the slice of the bar repository the refresher writes.
type BarWriter interface {
	UpsertBars(ctx context.Context, bars []domain.Bar) error
	LatestDate(ctx context.Context, symbol string) (time.Time, bool, error)
}

// Most vendors restate the current session's close after hours, so warm
// symbols re-fetch a few recent days on top of the missing tail.
const refreshOverlapDays = 3

// Refresher tops up the local bar store from the live provider. Symbols
// with no stored history get a full backfill; warm symbols fetch only the
// gap since their newest stored session.
type Refresher struct {
	tracer   trace.Tracer
	provider Provider
	store    BarWriter
	backfill int
}

func NewRefresher(tracer trace.Tracer, provider Provider, store BarWriter, backfillDays int) *Refresher {
	if backfillDays <= 0 {
		backfillDays = 900
	}
	return &Refresher{tracer: tracer, provider: provider, store: store, backfill: backfillDays}
}

func (r *Refresher) RefreshHistory(ctx context.Context, symbol string) error {
	ctx, span := r.tracer.Start(ctx, "marketdata.refresh-history")
	defer span.End()

	days := r.backfill
	latest, ok, err := r.store.LatestDate(ctx, symbol)
	if err != nil {
		return fmt.Errorf("latest stored session for %s: %w", symbol, err)
	}
	if ok {
		gap := int(time.Since(latest).Hours()/24) + refreshOverlapDays
		if gap < refreshOverlapDays {
			gap = refreshOverlapDays
		}
		if gap < days {
			days = gap
		}
	}

	bars, err := r.provider.History(ctx, symbol, days)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", symbol, err)
	}
	if err := r.store.UpsertBars(ctx, bars); err != nil {
		return fmt.Errorf("store %d bars for %s: %w", len(bars), symbol, err)
	}
	log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Int("window_days", days).Msg("history refreshed")
	return nil
}
