package job

import (
	"context"
	"log"
	"time"

	"alphasmith/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type Trainer interface {
	TrainAll(ctx context.Context) ([]domain.TrainReport, error)
}

// TrainJob retrains every model family once a day at a fixed UTC hour,
// after the US close when the final session bar is available.
type TrainJob struct {
	tracer    trace.Tracer
	service   Trainer
	trainHour int
}

func NewTrainJob(tracer trace.Tracer, service Trainer, trainHourUTC int) *TrainJob {
	if trainHourUTC < 0 || trainHourUTC > 23 {
		trainHourUTC = 2
	}
	return &TrainJob{tracer: tracer, service: service, trainHour: trainHourUTC}
}

func (j *TrainJob) Start(ctx context.Context) {
	if j.service == nil {
		log.Println("training job disabled: no service")
		<-ctx.Done()
		return
	}
	for {
		next := nextRunUTC(time.Now().UTC(), j.trainHour)
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

func (j *TrainJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "train-job.run-once")
	defer span.End()

	reports, err := j.service.TrainAll(ctx)
	if err != nil {
		log.Printf("training error: %v", err)
		return
	}
	for _, r := range reports {
		log.Printf("training result model=%s horizon=%dd accuracy=%.4f rows=%d", r.Kind, r.HorizonDays, r.Accuracy, r.Rows)
	}
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
