package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"alphasmith/internal/domain"
)

const tradingDaysPerYear = 252

// Metrics are the summary statistics for one simulated value series. Every
// ratio degrades to 0, never NaN or Inf, when its denominator has no
// variance.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	InformationRatio float64 `json:"information_ratio"`
}

// computeMetrics scores a value series against the capital it started from.
// The capital is prepended to the curve so that entry costs on the first
// session count as a return, not a free adjustment of the baseline.
func computeMetrics(capital float64, values, benchmark []float64, trades []domain.Trade) Metrics {
	var m Metrics
	if capital <= 0 || len(values) == 0 {
		return m
	}
	curve := withBase(capital, values)
	rets := dailyReturns(curve)

	m.TotalReturn = values[len(values)-1]/capital - 1
	m.AnnualizedReturn = annualize(m.TotalReturn, len(values))
	m.Sharpe = sharpe(rets)
	m.Sortino = sortino(rets)
	m.MaxDrawdown = maxDrawdown(curve)
	m.WinRate = winRate(trades)
	m.InformationRatio = sharpe(excessReturns(rets, dailyReturns(withBase(capital, benchmark))))
	return m
}

func withBase(base float64, values []float64) []float64 {
	curve := make([]float64, 0, len(values)+1)
	curve = append(curve, base)
	return append(curve, values...)
}

func dailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

func annualize(total float64, periods int) float64 {
	if periods < 1 {
		return 0
	}
	if total <= -1 {
		return -1
	}
	return math.Pow(1+total, tradingDaysPerYear/float64(periods)) - 1
}

func sharpe(rets []float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	sd := stat.StdDev(rets, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return stat.Mean(rets, nil) / sd * math.Sqrt(tradingDaysPerYear)
}

// sortino penalizes only downside moves: the denominator is the root mean
// square of the negative returns across the whole series.
func sortino(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rets {
		if r < 0 {
			sum += r * r
		}
	}
	down := math.Sqrt(sum / float64(len(rets)))
	if down == 0 {
		return 0
	}
	return stat.Mean(rets, nil) / down * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the deepest peak-to-trough loss on the curve, as a
// positive fraction of the peak.
func maxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// winRate scores closed round trips: a buy's cash out against the matching
// sell's cash in. A position still open at the end of the run is not
// scored.
func winRate(trades []domain.Trade) float64 {
	wins, trips := 0, 0
	spent := 0.0
	open := false
	for _, t := range trades {
		switch t.Side {
		case domain.TradeBuy:
			spent = t.Value + t.Commission
			open = true
		case domain.TradeSell:
			if !open {
				continue
			}
			got := t.Value - t.Commission
			if got < 0 {
				got = 0
			}
			trips++
			if got > spent {
				wins++
			}
			open = false
		}
	}
	if trips == 0 {
		return 0
	}
	return float64(wins) / float64(trips)
}

func excessReturns(rets, bench []float64) []float64 {
	n := len(rets)
	if len(bench) < n {
		n = len(bench)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = rets[i] - bench[i]
	}
	return out
}
