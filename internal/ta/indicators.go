// Package ta holds rolling numeric-series helpers. Every function returns a
// slice the same length as its input with math.NaN() wherever the window is
// not yet full, so downstream row filters can treat NaN uniformly.
package ta

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// Returns computes the percent return over period steps.
func Returns(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period; i < len(values); i++ {
		prev := values[i-period]
		if prev == 0 {
			continue
		}
		out[i] = values[i]/prev - 1
	}
	return out
}

// LogReturns computes one-step log returns.
func LogReturns(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || values[i] <= 0 {
			continue
		}
		out[i] = math.Log(values[i] / values[i-1])
	}
	return out
}

// RollingStd is the population standard deviation over a trailing window.
// NaN inputs inside the window poison the output for that position.
func RollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if anyNaNSlice(window) {
			continue
		}
		_, std := MeanStd(window)
		out[i] = std
	}
	return out
}

// RollingZ is the z-score of the latest value against its trailing window.
// Zero-variance windows yield NaN, never a division by zero.
func RollingZ(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if anyNaNSlice(window) {
			continue
		}
		mean, std := MeanStd(window)
		if std == 0 {
			continue
		}
		out[i] = (values[i] - mean) / std
	}
	return out
}

// RangePosition locates the latest value inside its trailing min..max range,
// 0 at the low and 1 at the high. Flat ranges yield NaN.
func RangePosition(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		ok := true
		for _, v := range values[i-period+1 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if !ok || hi == lo {
			continue
		}
		out[i] = (values[i] - lo) / (hi - lo)
	}
	return out
}

// RollingSlope fits a least-squares line over the trailing window and
// reports its per-step slope.
func RollingSlope(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 {
		return out
	}
	xs := make([]float64, period)
	for i := range xs {
		xs[i] = float64(i)
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if anyNaNSlice(window) {
			continue
		}
		_, beta := stat.LinearRegression(xs, window, nil, false)
		out[i] = beta
	}
	return out
}

// RollingBeta regresses asset steps on benchmark steps over the trailing
// window; both series must be aligned. Positions where either side has NaN
// stay NaN.
func RollingBeta(asset, bench []float64, period int) []float64 {
	n := len(asset)
	if len(bench) < n {
		n = len(bench)
	}
	out := nanSlice(len(asset))
	if period <= 1 {
		return out
	}
	for i := period - 1; i < n; i++ {
		aw := asset[i-period+1 : i+1]
		bw := bench[i-period+1 : i+1]
		if anyNaNSlice(aw) || anyNaNSlice(bw) {
			continue
		}
		_, bstd := MeanStd(bw)
		if bstd == 0 {
			continue
		}
		_, beta := stat.LinearRegression(bw, aw, nil, false)
		out[i] = beta
	}
	return out
}

// RollingCorr is the Pearson correlation over the trailing window.
func RollingCorr(a, b []float64, period int) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := nanSlice(len(a))
	if period <= 1 {
		return out
	}
	for i := period - 1; i < n; i++ {
		aw := a[i-period+1 : i+1]
		bw := b[i-period+1 : i+1]
		if anyNaNSlice(aw) || anyNaNSlice(bw) {
			continue
		}
		_, astd := MeanStd(aw)
		_, bstd := MeanStd(bw)
		if astd == 0 || bstd == 0 {
			continue
		}
		out[i] = stat.Correlation(aw, bw, nil)
	}
	return out
}

// MaskHead overwrites the first n positions with NaN. Indicator libraries
// fill their warmup region with zeros; masking keeps warmup garbage out of
// the feature table.
func MaskHead(values []float64, n int) []float64 {
	if n > len(values) {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		values[i] = math.NaN()
	}
	return values
}

// AnyNaN reports whether any argument is NaN.
func AnyNaN(values ...float64) bool {
	return anyNaNSlice(values)
}

func anyNaNSlice(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
