package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"alphasmith/internal/cache"
	"alphasmith/internal/domain"
	"alphasmith/internal/metrics"
)

// Cached decorates a Provider with a history cache. Entries are advisory:
// cache failures never fail the fetch, corrupt entries are dropped and
// refetched.
type Cached struct {
	next  Provider
	cache cache.Service
	ttl   time.Duration
	rec   *metrics.Recorder
}

func NewCached(next Provider, c cache.Service, ttl time.Duration, rec *metrics.Recorder) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, rec: rec}
}

func (p *Cached) History(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	key := fmt.Sprintf("bars:%s:%d", symbol, days)
	if bars, ok := p.lookup(ctx, key); ok {
		return bars, nil
	}

	bars, err := p.next.History(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, symbol, bars)
	return bars, nil
}

func (p *Cached) IndexHistory(ctx context.Context, days int) ([]domain.Bar, error) {
	key := fmt.Sprintf("bars:index:%d", days)
	if bars, ok := p.lookup(ctx, key); ok {
		return bars, nil
	}

	bars, err := p.next.IndexHistory(ctx, days)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, "index", bars)
	return bars, nil
}

func (p *Cached) lookup(ctx context.Context, key string) ([]domain.Bar, bool) {
	b, err := p.cache.Get(ctx, key)
	if err != nil {
		p.rec.RecordCache("miss")
		return nil, false
	}
	var bars []domain.Bar
	if err := json.Unmarshal(b, &bars); err != nil {
		_ = p.cache.Delete(ctx, key)
		p.rec.RecordCache("miss")
		return nil, false
	}
	p.rec.RecordCache("hit")
	return bars, true
}

func (p *Cached) store(ctx context.Context, key, symbol string, bars []domain.Bar) {
	b, err := json.Marshal(bars)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, b, p.ttl); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("history cache write failed")
	}
}
