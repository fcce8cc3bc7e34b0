package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type stubResolver struct {
	calls int
	limit int
	err   error
}

func (s *stubResolver) ResolveOutcomes(_ context.Context, limit int) (int, error) {
	s.calls++
	s.limit = limit
	return 3, s.err
}

func TestResolveJobRunOnce(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	stub := &stubResolver{}
	j := NewResolveJob(tracer, stub, time.Minute, 50)

	j.runOnce(context.Background())
	if stub.calls != 1 || stub.limit != 50 {
		t.Fatalf("expected one call with limit 50, got calls=%d limit=%d", stub.calls, stub.limit)
	}

	stub.err = errors.New("db down")
	j.runOnce(context.Background())
	if stub.calls != 2 {
		t.Fatalf("resolver errors should not stop the loop, got %d calls", stub.calls)
	}
}

func TestNewResolveJobDefaults(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	j := NewResolveJob(tracer, &stubResolver{}, 0, 0)
	if j.pollInterval != 30*time.Minute {
		t.Fatalf("expected 30m default interval, got %v", j.pollInterval)
	}
	if j.batchSize != 200 {
		t.Fatalf("expected batch size 200, got %d", j.batchSize)
	}
}
