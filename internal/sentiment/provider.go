// Package sentiment turns recent news flow into a dated score series the
// feature engine merges alongside price history.
package sentiment

import (
	"context"
	"time"

	"alphasmith/internal/features"
)

// Provider supplies a daily sentiment series for one symbol over a date
// window. Scores live in [-1, 1] with 0 neutral. Providers are advisory:
// a failed call leaves the pipeline on its neutral default and never
// aborts a run.
type Provider interface {
	Series(ctx context.Context, symbol string, from, to time.Time) ([]features.Point, error)
}

// Static serves a fixed series regardless of symbol. Used in tests and for
// replaying recorded scores.
type Static struct {
	Points []features.Point
}

func (s Static) Series(_ context.Context, _ string, from, to time.Time) ([]features.Point, error) {
	out := make([]features.Point, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
