package marketdata

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"alphasmith/internal/domain"
)

type fetchResult struct {
	symbol string
	bars   []domain.Bar
	err    error
}

// FetchSet retrieves history for every symbol using at most workers
// concurrent provider calls. Symbols are independent: a failed fetch is
// logged and omitted rather than failing the batch.
func FetchSet(ctx context.Context, p Provider, symbols []string, days, workers int) map[string][]domain.Bar {
	if len(symbols) == 0 {
		return map[string][]domain.Bar{}
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	jobs := make(chan string)
	results := make(chan fetchResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				bars, err := p.History(ctx, symbol, days)
				results <- fetchResult{symbol: symbol, bars: bars, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, symbol := range symbols {
			select {
			case jobs <- symbol:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string][]domain.Bar, len(symbols))
	for r := range results {
		if r.err != nil {
			log.Warn().Err(r.err).Str("symbol", r.symbol).Msg("history fetch failed, skipping symbol")
			continue
		}
		out[r.symbol] = r.bars
	}
	return out
}
