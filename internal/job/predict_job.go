package job

import (
	"context"
	"log"
	"time"

	"alphasmith/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type Predictor interface {
	PredictWatchlist(ctx context.Context, horizonDays int) ([]*domain.EnsemblePrediction, error)
}

// PredictJob re-scores the watchlist for every horizon on a fixed cadence.
type PredictJob struct {
	tracer       trace.Tracer
	service      Predictor
	horizons     []int
	pollInterval time.Duration
}

func NewPredictJob(tracer trace.Tracer, service Predictor, horizons []int, pollInterval time.Duration) *PredictJob {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	if len(horizons) == 0 {
		horizons = domain.DefaultHorizons
	}
	return &PredictJob{tracer: tracer, service: service, horizons: horizons, pollInterval: pollInterval}
}

func (j *PredictJob) Start(ctx context.Context) {
	if j.service == nil {
		log.Println("predict job disabled: no service")
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

func (j *PredictJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "predict-job.run-once")
	defer span.End()

	for _, horizon := range j.horizons {
		preds, err := j.service.PredictWatchlist(ctx, horizon)
		if err != nil {
			log.Printf("prediction cycle error for %dd horizon: %v", horizon, err)
			continue
		}
		if len(preds) > 0 {
			log.Printf("prediction cycle complete horizon=%dd symbols=%d", horizon, len(preds))
		}
	}
}
