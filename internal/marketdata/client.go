package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"alphasmith/internal/config"
	"alphasmith/internal/domain"
	"alphasmith/internal/metrics"
)

// Client fetches daily history over HTTP from a chart API. Requests pass
// through a token-bucket rate limiter and a circuit breaker; the base URL
// and credentials come from configuration so the vendor stays swappable.
type Client struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	benchmark string
	tracer    trace.Tracer
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	rec       *metrics.Recorder
}

func NewClient(tracer trace.Tracer, rec *metrics.Recorder, cfg config.DataConfig, benchmark string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketdata",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Client{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		benchmark: benchmark,
		tracer:    tracer,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		breaker:   breaker,
		rec:       rec,
	}
}

type chartResponse struct {
	Symbol string     `json:"symbol"`
	Bars   []chartBar `json:"bars"`
}

type chartBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	ctx, span := c.tracer.Start(ctx, "marketdata.history")
	defer span.End()

	url := fmt.Sprintf("%s/v1/chart/%s?days=%d&interval=1d", c.baseURL, symbol, days)
	body, err := c.doRequest(ctx, url)
	if err != nil {
		c.rec.RecordFetch(symbol, "error")
		return nil, fmt.Errorf("fetch history for %s: %w: %w", symbol, domain.ErrDataUnavailable, err)
	}

	var raw chartResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		c.rec.RecordFetch(symbol, "error")
		return nil, fmt.Errorf("parse history for %s: %w: %w", symbol, domain.ErrDataUnavailable, err)
	}

	bars := make([]domain.Bar, 0, len(raw.Bars))
	for _, b := range raw.Bars {
		date, err := time.ParseInLocation("2006-01-02", b.Date, time.UTC)
		if err != nil {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if len(bars) == 0 {
		c.rec.RecordFetch(symbol, "empty")
		return nil, fmt.Errorf("history for %s: empty response: %w", symbol, domain.ErrDataUnavailable)
	}
	domain.SortBars(bars)

	c.rec.RecordFetch(symbol, "ok")
	return bars, nil
}

func (c *Client) IndexHistory(ctx context.Context, days int) ([]domain.Bar, error) {
	return c.History(ctx, c.benchmark, days)
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("chart API error %d: %s", resp.StatusCode, string(snippet))
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}
