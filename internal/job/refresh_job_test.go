package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type stubRefresher struct {
	mu      sync.Mutex
	symbols []string
}

func (s *stubRefresher) RefreshHistory(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append(s.symbols, symbol)
	return nil
}

func (s *stubRefresher) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

func TestNewRefreshJobDefaults(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	j := NewRefreshJob(tracer, &stubRefresher{}, []string{"AAPL"}, 0, 0)
	if j.interval != 15*time.Minute {
		t.Fatalf("expected 15m default interval, got %v", j.interval)
	}
	if j.batchSize != 4 {
		t.Fatalf("expected batch size 4, got %d", j.batchSize)
	}
}

func TestRefreshBatchRoundRobin(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	stub := &stubRefresher{}
	j := NewRefreshJob(tracer, stub, []string{"AAPL", "MSFT", "SPY"}, time.Minute, 2)

	idx := 0
	j.refreshBatch(context.Background(), &idx)
	j.refreshBatch(context.Background(), &idx)

	seen := stub.seen()
	want := []string{"AAPL", "MSFT", "SPY", "AAPL"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d refreshes, got %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("rotation broke at %d: got %v", i, seen)
		}
	}
}

func TestRefreshJobStart(t *testing.T) {
	t.Parallel()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	stub := &stubRefresher{}
	j := NewRefreshJob(tracer, stub, []string{"AAPL", "MSFT"}, time.Minute, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go j.Start(ctx)

	eventually(t, func() bool { return len(stub.seen()) >= 2 })
	cancel()
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
