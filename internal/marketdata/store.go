package marketdata

import (
	"context"
	"fmt"

	"alphasmith/internal/domain"
)

// BarStore is the slice of the bar repository this provider reads.
type BarStore interface {
	RecentBars(ctx context.Context, symbol string, days int) ([]domain.Bar, error)
}

// Store serves history from the local bar store instead of the network.
// Daemon deployments keep the store warm with the refresh job and point the
// pipeline here.
type Store struct {
	store     BarStore
	benchmark string
}

func NewStore(store BarStore, benchmark string) *Store {
	return &Store{store: store, benchmark: benchmark}
}

func (s *Store) History(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	bars, err := s.store.RecentBars(ctx, symbol, days)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w: %w", symbol, domain.ErrDataUnavailable, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no stored history for %s: %w", symbol, domain.ErrDataUnavailable)
	}
	domain.SortBars(bars)
	return bars, nil
}

func (s *Store) IndexHistory(ctx context.Context, days int) ([]domain.Bar, error) {
	return s.History(ctx, s.benchmark, days)
}
