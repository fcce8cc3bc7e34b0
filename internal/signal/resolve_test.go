package signal

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"alphasmith/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type resolvedCall struct {
	symbol         string
	horizonDays    int
	asOf           time.Time
	actualUp       bool
	correct        bool
	realizedReturn float64
}

type fakeLedger struct {
	due     []domain.EnsemblePrediction
	dueErr  error
	calls   []resolvedCall
	callErr error
}

func (l *fakeLedger) UnresolvedDue(context.Context, time.Time, int) ([]domain.EnsemblePrediction, error) {
	return l.due, l.dueErr
}

func (l *fakeLedger) ResolvePrediction(_ context.Context, symbol string, horizonDays int, asOf time.Time, actualUp, correct bool, realizedReturn float64) error {
	if l.callErr != nil {
		return l.callErr
	}
	l.calls = append(l.calls, resolvedCall{symbol, horizonDays, asOf, actualUp, correct, realizedReturn})
	return nil
}

type fakeRealized struct {
	bars map[string][]domain.Bar
}

func (f *fakeRealized) BarsInRange(_ context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func duePrediction(symbol string, price, upProb float64) domain.EnsemblePrediction {
	asOf := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	return domain.EnsemblePrediction{
		Symbol:        symbol,
		AsOf:          asOf,
		TargetDate:    asOf.AddDate(0, 0, 7),
		HorizonDays:   5,
		Price:         price,
		UpProbability: upProb,
		Direction:     domain.DirectionLong,
	}
}

func newTestResolver(ledger *fakeLedger, bars *fakeRealized) *Resolver {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewResolver(tracer, ledger, bars)
}

func TestResolveOutcomesScoresAgainstFirstSession(t *testing.T) {
	p := duePrediction("AAPL", 100, 0.61)
	ledger := &fakeLedger{due: []domain.EnsemblePrediction{p}}
	// The target date itself has no session; the close two days later is
	// the first one inside the window.
	bars := &fakeRealized{bars: map[string][]domain.Bar{
		"AAPL": {
			{Symbol: "AAPL", Date: p.TargetDate.AddDate(0, 0, 2), Close: 103},
			{Symbol: "AAPL", Date: p.TargetDate.AddDate(0, 0, 3), Close: 90},
		},
	}}

	n, err := newTestResolver(ledger, bars).ResolveOutcomes(context.Background(), 50)
	if err != nil {
		t.Fatalf("resolve outcomes: %v", err)
	}
	if n != 1 || len(ledger.calls) != 1 {
		t.Fatalf("expected 1 resolution, got n=%d calls=%d", n, len(ledger.calls))
	}
	call := ledger.calls[0]
	if !call.actualUp || !call.correct {
		t.Fatalf("a rise called up should score correct, got %+v", call)
	}
	if math.Abs(call.realizedReturn-0.03) > 1e-9 {
		t.Fatalf("expected realized return 0.03, got %v", call.realizedReturn)
	}
	if call.symbol != "AAPL" || call.horizonDays != 5 || !call.asOf.Equal(p.AsOf) {
		t.Fatalf("resolution keyed wrong: %+v", call)
	}
}

func TestResolveOutcomesGradesWrongCalls(t *testing.T) {
	p := duePrediction("MSFT", 200, 0.38)
	ledger := &fakeLedger{due: []domain.EnsemblePrediction{p}}
	bars := &fakeRealized{bars: map[string][]domain.Bar{
		"MSFT": {{Symbol: "MSFT", Date: p.TargetDate, Close: 210}},
	}}

	n, err := newTestResolver(ledger, bars).ResolveOutcomes(context.Background(), 50)
	if err != nil {
		t.Fatalf("resolve outcomes: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 resolution, got %d", n)
	}
	call := ledger.calls[0]
	if !call.actualUp {
		t.Fatal("price rose, actualUp should be true")
	}
	if call.correct {
		t.Fatal("a down call on a rise should score incorrect")
	}
}

func TestResolveOutcomesWaitsForBars(t *testing.T) {
	p := duePrediction("NVDA", 500, 0.7)
	ledger := &fakeLedger{due: []domain.EnsemblePrediction{p}}
	bars := &fakeRealized{bars: map[string][]domain.Bar{}}

	n, err := newTestResolver(ledger, bars).ResolveOutcomes(context.Background(), 50)
	if err != nil {
		t.Fatalf("resolve outcomes: %v", err)
	}
	if n != 0 || len(ledger.calls) != 0 {
		t.Fatalf("missing bars should leave the row unresolved, got n=%d", n)
	}
}

func TestResolveOutcomesLedgerError(t *testing.T) {
	ledger := &fakeLedger{dueErr: errors.New("connection reset")}
	_, err := newTestResolver(ledger, &fakeRealized{}).ResolveOutcomes(context.Background(), 50)
	if err == nil {
		t.Fatal("expected the listing error to surface")
	}
}
