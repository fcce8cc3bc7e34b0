package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"alphasmith/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type stubPredictor struct {
	mu       sync.Mutex
	horizons []int
}

func (s *stubPredictor) PredictWatchlist(_ context.Context, horizonDays int) ([]*domain.EnsemblePrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.horizons = append(s.horizons, horizonDays)
	return []*domain.EnsemblePrediction{{Symbol: "AAPL", HorizonDays: horizonDays}}, nil
}

func (s *stubPredictor) seen() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.horizons...)
}

func TestPredictJobCoversEveryHorizon(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	stub := &stubPredictor{}
	j := NewPredictJob(tracer, stub, []int{1, 5, 20}, time.Minute)

	j.runOnce(context.Background())

	seen := stub.seen()
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 5 || seen[2] != 20 {
		t.Fatalf("expected horizons 1,5,20 in order, got %v", seen)
	}
}

func TestNewPredictJobDefaults(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	j := NewPredictJob(tracer, &stubPredictor{}, nil, 0)
	if j.pollInterval != time.Hour {
		t.Fatalf("expected 1h default interval, got %v", j.pollInterval)
	}
	if len(j.horizons) != len(domain.DefaultHorizons) {
		t.Fatalf("expected default horizons, got %v", j.horizons)
	}
}

func TestPredictJobStart(t *testing.T) {
	t.Parallel()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	stub := &stubPredictor{}
	j := NewPredictJob(tracer, stub, []int{5}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go j.Start(ctx)

	eventually(t, func() bool { return len(stub.seen()) > 0 })
	cancel()
}
