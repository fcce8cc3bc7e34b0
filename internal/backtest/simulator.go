// Package backtest replays a long-only, single-position trading policy over
// a daily price and probability series and scores it against buy-and-hold.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/config"
	"alphasmith/internal/domain"
	"alphasmith/internal/metrics"
)

// Day is one session's input: the closing price and the model's probability
// that the symbol closes higher after the trained horizon.
type Day struct {
	Date        time.Time
	Price       float64
	Probability float64
}

// Result is the full outcome of one simulated run. Equity and Benchmark
// hold end-of-session portfolio values, one entry per input day.
type Result struct {
	Symbol         string         `json:"symbol"`
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Days           int            `json:"days"`
	InitialCapital float64        `json:"initial_capital"`
	FinalValue     float64        `json:"final_value"`
	Trades         []domain.Trade `json:"trades"`
	Equity         []float64      `json:"equity"`
	Benchmark      []float64      `json:"benchmark"`
	Strategy       Metrics        `json:"strategy"`
	BuyAndHold     Metrics        `json:"buy_and_hold"`
}

// Simulator runs the day-by-day state machine. The transition rule is
// deliberately simple: above the threshold and flat means buy with all
// available cash, at or below the threshold while holding means sell the
// whole position, anything else holds.
type Simulator struct {
	tracer trace.Tracer
	rec    *metrics.Recorder
	cfg    config.BacktestConfig
}

func NewSimulator(tracer trace.Tracer, rec *metrics.Recorder, cfg config.BacktestConfig) *Simulator {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 10_000
	}
	if cfg.SlippagePct < 0 {
		cfg.SlippagePct = 0
	}
	if cfg.Commission < 0 {
		cfg.Commission = 0
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = 0.55
	}
	return &Simulator{tracer: tracer, rec: rec, cfg: cfg}
}

// Run simulates the policy over days, which may arrive unsorted. Portfolio
// state moves strictly in date order; any position left open after the last
// session is liquidated at its close.
func (s *Simulator) Run(ctx context.Context, symbol string, days []Day) (*Result, error) {
	_, span := s.tracer.Start(ctx, "backtest.run")
	defer span.End()

	if len(days) == 0 {
		return nil, fmt.Errorf("backtest %s: no sessions to simulate", symbol)
	}
	series := append([]Day(nil), days...)
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	for _, d := range series {
		if d.Price <= 0 || math.IsNaN(d.Price) {
			return nil, fmt.Errorf("backtest %s: bad price %.4f on %s", symbol, d.Price, d.Date.Format("2006-01-02"))
		}
	}

	res := &Result{
		Symbol:         symbol,
		From:           domain.TradingDay(series[0].Date),
		To:             domain.TradingDay(series[len(series)-1].Date),
		Days:           len(series),
		InitialCapital: s.cfg.InitialCapital,
		Equity:         make([]float64, 0, len(series)),
		Benchmark:      make([]float64, 0, len(series)),
	}

	cash := s.cfg.InitialCapital
	shares := 0.0
	last := len(series) - 1
	for i, d := range series {
		switch {
		case math.IsNaN(d.Probability):
			// no signal, keep the current position
		case d.Probability > s.cfg.Threshold && shares == 0 && i != last:
			// a position opened on the final session would be unwound in
			// the same fill, so skip it
			cash, shares = s.buy(res, symbol, d, cash)
		case d.Probability <= s.cfg.Threshold && shares > 0:
			cash, shares = s.sell(res, symbol, d, shares)
		}
		if i == last && shares > 0 {
			cash, shares = s.sell(res, symbol, d, shares)
		}
		res.Equity = append(res.Equity, cash+shares*d.Price)
	}
	res.FinalValue = cash

	res.Benchmark = buyAndHold(series, s.cfg)
	res.Strategy = computeMetrics(s.cfg.InitialCapital, res.Equity, res.Benchmark, res.Trades)
	res.BuyAndHold = computeMetrics(s.cfg.InitialCapital, res.Benchmark, res.Benchmark, nil)

	s.rec.RecordBacktest()
	return res, nil
}

func (s *Simulator) buy(res *Result, symbol string, d Day, cash float64) (newCash, shares float64) {
	budget := cash - s.cfg.Commission
	if budget <= 0 {
		return cash, 0
	}
	fill := d.Price * (1 + s.cfg.SlippagePct)
	shares = budget / fill
	res.Trades = append(res.Trades, domain.Trade{
		Symbol:      symbol,
		Date:        domain.TradingDay(d.Date),
		Side:        domain.TradeBuy,
		Price:       fill,
		Shares:      shares,
		Value:       budget,
		Commission:  s.cfg.Commission,
		Probability: d.Probability,
	})
	return 0, shares
}

func (s *Simulator) sell(res *Result, symbol string, d Day, shares float64) (cash, newShares float64) {
	fill := d.Price * (1 - s.cfg.SlippagePct)
	gross := shares * fill
	proceeds := gross - s.cfg.Commission
	if proceeds < 0 {
		// the broker keeps the whole position's worth, never more
		proceeds = 0
	}
	res.Trades = append(res.Trades, domain.Trade{
		Symbol:      symbol,
		Date:        domain.TradingDay(d.Date),
		Side:        domain.TradeSell,
		Price:       fill,
		Shares:      shares,
		Value:       gross,
		Commission:  s.cfg.Commission,
		Probability: d.Probability,
	})
	return proceeds, 0
}

// buyAndHold enters on the first session with the same capital and entry
// frictions as the strategy, then marks the position to market with no
// further trading.
func buyAndHold(series []Day, cfg config.BacktestConfig) []float64 {
	values := make([]float64, 0, len(series))
	budget := cfg.InitialCapital - cfg.Commission
	if budget <= 0 {
		for range series {
			values = append(values, cfg.InitialCapital)
		}
		return values
	}
	shares := budget / (series[0].Price * (1 + cfg.SlippagePct))
	for _, d := range series {
		values = append(values, shares*d.Price)
	}
	return values
}
