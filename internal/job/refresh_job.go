package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// HistoryRefresher tops up stored history for one symbol.
type HistoryRefresher interface {
	RefreshHistory(ctx context.Context, symbol string) error
}

// RefreshJob walks the watchlist in round-robin batches so a long list
// spreads its provider calls across ticks instead of bursting. The rotation
// should include the benchmark symbol.
type RefreshJob struct {
	tracer    trace.Tracer
	refresher HistoryRefresher
	symbols   []string
	interval  time.Duration
	batchSize int
}

func NewRefreshJob(tracer trace.Tracer, refresher HistoryRefresher, symbols []string, interval time.Duration, batchSize int) *RefreshJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 4
	}
	return &RefreshJob{
		tracer:    tracer,
		refresher: refresher,
		symbols:   symbols,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start blocks until ctx is cancelled.
func (j *RefreshJob) Start(ctx context.Context) {
	if j.refresher == nil || len(j.symbols) == 0 {
		log.Println("history refresh job disabled: nothing to refresh")
		<-ctx.Done()
		return
	}

	symbolIndex := 0
	j.refreshBatch(ctx, &symbolIndex)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("history refresh job stopped")
			return
		case <-ticker.C:
			j.refreshBatch(ctx, &symbolIndex)
		}
	}
}

func (j *RefreshJob) refreshBatch(ctx context.Context, symbolIndex *int) {
	_, span := j.tracer.Start(ctx, "refresh-job.batch")
	defer span.End()

	for i := 0; i < j.batchSize; i++ {
		symbol := j.symbols[*symbolIndex%len(j.symbols)]
		*symbolIndex++

		if err := j.refresher.RefreshHistory(ctx, symbol); err != nil {
			log.Printf("history refresh error for %s: %v", symbol, err)
		}
	}
}
