package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"alphasmith/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type windowProvider struct {
	requestedDays int
	err           error
}

func (p *windowProvider) History(_ context.Context, symbol string, days int) ([]domain.Bar, error) {
	p.requestedDays = days
	if p.err != nil {
		return nil, p.err
	}
	return someBars(symbol, 2), nil
}

func (p *windowProvider) IndexHistory(ctx context.Context, days int) ([]domain.Bar, error) {
	return p.History(ctx, "SPY", days)
}

type recordingWriter struct {
	latest    time.Time
	hasLatest bool
	upserted  []domain.Bar
	upsertErr error
}

func (w *recordingWriter) UpsertBars(_ context.Context, bars []domain.Bar) error {
	if w.upsertErr != nil {
		return w.upsertErr
	}
	w.upserted = append(w.upserted, bars...)
	return nil
}

func (w *recordingWriter) LatestDate(context.Context, string) (time.Time, bool, error) {
	return w.latest, w.hasLatest, nil
}

func newTestRefresher(p Provider, w BarWriter, backfill int) *Refresher {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewRefresher(tracer, p, w, backfill)
}

func TestRefreshBackfillsColdSymbol(t *testing.T) {
	p := &windowProvider{}
	w := &recordingWriter{}
	r := newTestRefresher(p, w, 200)

	if err := r.RefreshHistory(context.Background(), "AAPL"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if p.requestedDays != 200 {
		t.Fatalf("cold symbol should request the full backfill, asked for %d days", p.requestedDays)
	}
	if len(w.upserted) != 2 {
		t.Fatalf("expected 2 bars stored, got %d", len(w.upserted))
	}
}

func TestRefreshFetchesOnlyTail(t *testing.T) {
	p := &windowProvider{}
	w := &recordingWriter{latest: time.Now().UTC().Add(-5 * 24 * time.Hour), hasLatest: true}
	r := newTestRefresher(p, w, 900)

	if err := r.RefreshHistory(context.Background(), "AAPL"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if p.requestedDays != 5+refreshOverlapDays {
		t.Fatalf("warm symbol should request the gap plus overlap, asked for %d days", p.requestedDays)
	}
}

func TestRefreshGapCappedAtBackfill(t *testing.T) {
	p := &windowProvider{}
	w := &recordingWriter{latest: time.Now().UTC().AddDate(-6, 0, 0), hasLatest: true}
	r := newTestRefresher(p, w, 30)

	if err := r.RefreshHistory(context.Background(), "AAPL"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if p.requestedDays != 30 {
		t.Fatalf("stale symbol should cap at the backfill window, asked for %d days", p.requestedDays)
	}
}

func TestRefreshPropagatesProviderError(t *testing.T) {
	p := &windowProvider{err: domain.ErrDataUnavailable}
	w := &recordingWriter{}
	r := newTestRefresher(p, w, 100)

	err := r.RefreshHistory(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected provider error to surface, got %v", err)
	}
	if len(w.upserted) != 0 {
		t.Fatal("failed refresh should not store bars")
	}
}
