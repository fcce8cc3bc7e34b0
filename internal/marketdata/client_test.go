package marketdata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/config"
	"alphasmith/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testDataConfig() config.DataConfig {
	return config.DataConfig{
		BaseURL:        "http://example",
		RequestTimeout: 5 * time.Second,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
}

func newTestClient(rt roundTripFunc) *Client {
	c := NewClient(trace.NewNoopTracerProvider().Tracer("test"), nil, testDataConfig(), "SPY")
	c.client = &http.Client{Transport: rt}
	return c
}

func TestClientHistory(t *testing.T) {
	t.Parallel()

	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, "/v1/chart/AAPL") {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		body := `{"symbol":"AAPL","bars":[
			{"date":"2024-01-03","open":3,"high":4,"low":2,"close":3.5,"volume":300},
			{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":1.5,"volume":100}
		]}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(body))),
			Header:     make(http.Header),
		}, nil
	})

	bars, err := c.History(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Date.Before(bars[1].Date) {
		t.Fatalf("bars not sorted ascending: %v, %v", bars[0].Date, bars[1].Date)
	}
	if bars[0].Symbol != "AAPL" || bars[0].Close != 1.5 {
		t.Fatalf("unexpected first bar: %+v", bars[0])
	}
}

func TestClientHistoryHTTPError(t *testing.T) {
	t.Parallel()

	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader("boom")),
			Header:     make(http.Header),
		}, nil
	})

	_, err := c.History(context.Background(), "AAPL", 10)
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestClientHistoryEmptyResponse(t *testing.T) {
	t.Parallel()

	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"symbol":"AAPL","bars":[]}`)),
			Header:     make(http.Header),
		}, nil
	})

	_, err := c.History(context.Background(), "AAPL", 10)
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable for empty history, got %v", err)
	}
}

func TestClientIndexHistory(t *testing.T) {
	t.Parallel()

	var gotPath string
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		body := `{"symbol":"SPY","bars":[{"date":"2024-01-02","open":1,"high":1,"low":1,"close":1,"volume":1}]}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	})

	if _, err := c.IndexHistory(context.Background(), 30); err != nil {
		t.Fatalf("IndexHistory: %v", err)
	}
	if !strings.Contains(gotPath, "/v1/chart/SPY") {
		t.Fatalf("expected benchmark path, got %s", gotPath)
	}
}

func TestClientAPIKeyHeader(t *testing.T) {
	t.Parallel()

	cfg := testDataConfig()
	cfg.APIKey = "secret"
	c := NewClient(trace.NewNoopTracerProvider().Tracer("test"), nil, cfg, "SPY")
	c.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-API-Key") != "secret" {
			t.Fatalf("missing api key header")
		}
		body := `{"symbol":"AAPL","bars":[{"date":"2024-01-02","open":1,"high":1,"low":1,"close":1,"volume":1}]}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	})}

	if _, err := c.History(context.Background(), "AAPL", 5); err != nil {
		t.Fatalf("History: %v", err)
	}
}
