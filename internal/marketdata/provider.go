package marketdata

import (
	"context"

	"alphasmith/internal/domain"
)

// Provider supplies daily OHLCV history. Bars come back sorted ascending by
// date. Implementations wrap transport failures in domain.ErrDataUnavailable
// so batch callers can classify with errors.Is.
type Provider interface {
	// History returns up to days trading days of bars for symbol, ending at
	// the most recent available day.
	History(ctx context.Context, symbol string, days int) ([]domain.Bar, error)

	// IndexHistory returns the benchmark index series used for
	// relative-strength features and buy-and-hold comparisons.
	IndexHistory(ctx context.Context, days int) ([]domain.Bar, error)
}
