package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type OutcomeResolver interface {
	ResolveOutcomes(ctx context.Context, limit int) (int, error)
}

// ResolveJob periodically grades stored predictions whose target session
// has passed.
type ResolveJob struct {
	tracer       trace.Tracer
	service      OutcomeResolver
	pollInterval time.Duration
	batchSize    int
}

func NewResolveJob(tracer trace.Tracer, service OutcomeResolver, pollInterval time.Duration, batchSize int) *ResolveJob {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ResolveJob{tracer: tracer, service: service, pollInterval: pollInterval, batchSize: batchSize}
}

func (j *ResolveJob) Start(ctx context.Context) {
	if j.service == nil {
		log.Println("outcome resolver job disabled: no service")
		<-ctx.Done()
		return
	}
	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ResolveJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "resolve-job.run-once")
	defer span.End()

	resolved, err := j.service.ResolveOutcomes(ctx, j.batchSize)
	if err != nil {
		log.Printf("outcome resolver error: %v", err)
		return
	}
	if resolved > 0 {
		log.Printf("outcome resolver graded %d predictions", resolved)
	}
}
