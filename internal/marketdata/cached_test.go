package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alphasmith/internal/cache"
	"alphasmith/internal/domain"
)

type stubProvider struct {
	mu    sync.Mutex
	calls map[string]int
	bars  map[string][]domain.Bar
	fail  map[string]bool
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		calls: make(map[string]int),
		bars:  make(map[string][]domain.Bar),
		fail:  make(map[string]bool),
	}
}

func (s *stubProvider) History(_ context.Context, symbol string, _ int) ([]domain.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	if s.fail[symbol] {
		return nil, domain.ErrDataUnavailable
	}
	return s.bars[symbol], nil
}

func (s *stubProvider) IndexHistory(ctx context.Context, days int) ([]domain.Bar, error) {
	return s.History(ctx, "SPY", days)
}

func (s *stubProvider) callCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

func someBars(symbol string, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol: symbol,
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   10, High: 11, Low: 9, Close: 10.5, Volume: 1000,
		}
	}
	return bars
}

func TestCachedHistoryHitSkipsProvider(t *testing.T) {
	ctx := context.Background()
	stub := newStubProvider()
	stub.bars["AAPL"] = someBars("AAPL", 3)

	mem := cache.NewMemory()
	defer mem.Close()
	p := NewCached(stub, mem, time.Hour, nil)

	first, err := p.History(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	second, err := p.History(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("History (cached): %v", err)
	}
	if stub.callCount("AAPL") != 1 {
		t.Fatalf("expected exactly 1 provider call, got %d", stub.callCount("AAPL"))
	}
	if len(first) != len(second) || !first[0].Date.Equal(second[0].Date) {
		t.Fatalf("cached bars differ from fetched bars")
	}
}

func TestCachedHistoryPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	stub := newStubProvider()
	stub.fail["MSFT"] = true

	mem := cache.NewMemory()
	defer mem.Close()
	p := NewCached(stub, mem, time.Hour, nil)

	if _, err := p.History(ctx, "MSFT", 5); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestCachedHistoryDropsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	stub := newStubProvider()
	stub.bars["NVDA"] = someBars("NVDA", 2)

	mem := cache.NewMemory()
	defer mem.Close()
	if err := mem.Set(ctx, "bars:NVDA:2", []byte("{not json"), time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	p := NewCached(stub, mem, time.Hour, nil)
	bars, err := p.History(ctx, "NVDA", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected refetched bars, got %d", len(bars))
	}
	if stub.callCount("NVDA") != 1 {
		t.Fatalf("expected provider fallback on corrupt entry, calls=%d", stub.callCount("NVDA"))
	}
}

func TestCachedIndexHistory(t *testing.T) {
	ctx := context.Background()
	stub := newStubProvider()
	stub.bars["SPY"] = someBars("SPY", 4)

	mem := cache.NewMemory()
	defer mem.Close()
	p := NewCached(stub, mem, time.Hour, nil)

	if _, err := p.IndexHistory(ctx, 4); err != nil {
		t.Fatalf("IndexHistory: %v", err)
	}
	if _, err := p.IndexHistory(ctx, 4); err != nil {
		t.Fatalf("IndexHistory (cached): %v", err)
	}
	if stub.callCount("SPY") != 1 {
		t.Fatalf("expected 1 provider call for index, got %d", stub.callCount("SPY"))
	}
}
