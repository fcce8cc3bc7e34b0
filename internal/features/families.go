package features

import (
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"

	"alphasmith/internal/ta"
)

// go-talib fills indicator warmup regions with zeros rather than NaN, so
// every derived column is masked for its lookback before it enters the
// table.

func addReturnFeatures(t *Table, closes []float64) {
	for _, k := range []int{1, 2, 3, 5, 10, 20, 60, 120} {
		t.addNumeric(fmt.Sprintf("ret_%dd", k), ta.Returns(closes, k))
	}
	t.addNumeric("logret_1d", ta.LogReturns(closes))
}

func addTrendFeatures(t *Table, highs, lows, closes []float64) {
	smas := map[int][]float64{}
	for _, p := range []int{10, 20, 50, 200} {
		sma := ta.MaskHead(talib.Sma(closes, p), p-1)
		smas[p] = sma
		t.addNumeric(fmt.Sprintf("sma_%d_dist", p), ratioMinusOne(closes, sma))
	}
	for _, p := range []int{12, 26} {
		ema := ta.MaskHead(talib.Ema(closes, p), p-1)
		t.addNumeric(fmt.Sprintf("ema_%d_dist", p), ratioMinusOne(closes, ema))
	}
	t.addNumeric("sma_20_50_cross", ratioMinusOne(smas[20], smas[50]))
	t.addNumeric("sma_50_200_cross", ratioMinusOne(smas[50], smas[200]))

	line, signal, hist := talib.Macd(closes, 12, 26, 9)
	macdMask := 26 + 9
	t.addNumeric("macd_line", ta.MaskHead(divideBy(line, closes), macdMask))
	t.addNumeric("macd_signal", ta.MaskHead(divideBy(signal, closes), macdMask))
	t.addNumeric("macd_hist", ta.MaskHead(divideBy(hist, closes), macdMask))

	t.addNumeric("adx_14", ta.MaskHead(talib.Adx(highs, lows, closes, 14), 2*14))

	for _, p := range []int{10, 20} {
		t.addNumeric(fmt.Sprintf("roc_%d", p), ta.MaskHead(talib.Roc(closes, p), p))
	}
}

func addOscillatorFeatures(t *Table, highs, lows, closes []float64) {
	for _, p := range []int{7, 14} {
		t.addNumeric(fmt.Sprintf("rsi_%d", p), ta.MaskHead(talib.Rsi(closes, p), p))
	}

	k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	stochMask := 14 + 3 + 3
	t.addNumeric("stoch_k", ta.MaskHead(k, stochMask))
	t.addNumeric("stoch_d", ta.MaskHead(d, stochMask))
}

func addVolatilityFeatures(t *Table, opens, highs, lows, closes []float64) {
	ret1 := ta.Returns(closes, 1)
	for _, p := range []int{5, 10, 20, 60} {
		t.addNumeric(fmt.Sprintf("vol_%dd", p), ta.RollingStd(ret1, p))
	}

	atr := ta.MaskHead(talib.Atr(highs, lows, closes, 14), 14)
	t.addNumeric("atr_14_norm", divideBy(atr, closes))

	upper, middle, lower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	bbWidth := make([]float64, len(closes))
	bbPos := make([]float64, len(closes))
	for i := range closes {
		if middle[i] == 0 {
			bbWidth[i] = math.NaN()
		} else {
			bbWidth[i] = (upper[i] - lower[i]) / middle[i]
		}
		if upper[i] == lower[i] {
			bbPos[i] = math.NaN()
		} else {
			bbPos[i] = (closes[i] - lower[i]) / (upper[i] - lower[i])
		}
	}
	t.addNumeric("bb_width", ta.MaskHead(bbWidth, 19))
	t.addNumeric("bb_pos", ta.MaskHead(bbPos, 19))

	rangePct := make([]float64, len(closes))
	for i := range closes {
		if closes[i] == 0 {
			rangePct[i] = math.NaN()
			continue
		}
		rangePct[i] = (highs[i] - lows[i]) / closes[i]
	}
	t.addNumeric("range_pct", rangePct)
	t.addNumeric("range_pct_5d", ta.MaskHead(talib.Sma(rangePct, 5), 4))

	gap := make([]float64, len(closes))
	gap[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			gap[i] = math.NaN()
			continue
		}
		gap[i] = opens[i]/closes[i-1] - 1
	}
	t.addNumeric("gap_open", gap)
}

func addVolumeFeatures(t *Table, closes, volumes []float64) {
	t.addNumeric("volume_z_20", ta.RollingZ(volumes, 20))

	turnover := make([]float64, len(closes))
	for i := range closes {
		turnover[i] = closes[i] * volumes[i]
	}
	t.addNumeric("turnover_z_20", ta.RollingZ(turnover, 20))

	volSma5 := ta.MaskHead(talib.Sma(volumes, 5), 4)
	volSma20 := ta.MaskHead(talib.Sma(volumes, 20), 19)
	ratio := make([]float64, len(volumes))
	for i := range volumes {
		if volSma20[i] == 0 || ta.AnyNaN(volSma5[i], volSma20[i]) {
			ratio[i] = math.NaN()
			continue
		}
		ratio[i] = volSma5[i] / volSma20[i]
	}
	t.addNumeric("vol_ratio_5_20", ratio)

	obv := talib.Obv(closes, volumes)
	obvSlope := ta.RollingSlope(obv, 10)
	normalized := make([]float64, len(obv))
	for i := range obv {
		if ta.AnyNaN(obvSlope[i], volSma20[i]) || volSma20[i] == 0 {
			normalized[i] = math.NaN()
			continue
		}
		normalized[i] = obvSlope[i] / volSma20[i]
	}
	t.addNumeric("obv_slope_10", normalized)
}

func addPositionFeatures(t *Table, closes []float64) {
	for _, p := range []int{20, 60, 120, 252} {
		t.addNumeric(fmt.Sprintf("close_pos_%dd", p), ta.RangePosition(closes, p))
	}

	high252 := ta.MaskHead(talib.Max(closes, 252), 251)
	low252 := ta.MaskHead(talib.Min(closes, 252), 251)
	t.addNumeric("dist_high_252d", ratioMinusOne(closes, high252))
	t.addNumeric("dist_low_252d", ratioMinusOne(closes, low252))
}

func addRelativeStrength(t *Table, closes, benchCloses []float64) {
	for _, k := range []int{5, 10, 20, 60, 120} {
		assetRet := ta.Returns(closes, k)
		benchRet := ta.Returns(benchCloses, k)
		diff := make([]float64, len(closes))
		for i := range diff {
			diff[i] = assetRet[i] - benchRet[i]
		}
		t.addNumeric(fmt.Sprintf("rs_diff_%dd", k), diff)
	}

	ratio := make([]float64, len(closes))
	for i := range closes {
		if benchCloses[i] == 0 || ta.AnyNaN(benchCloses[i]) {
			ratio[i] = math.NaN()
			continue
		}
		ratio[i] = closes[i] / benchCloses[i]
	}
	t.addNumeric("rs_ratio_z_20", ta.RollingZ(ratio, 20))
	t.addNumeric("rs_mom_20d", ta.Returns(ratio, 20))

	assetRet1 := ta.Returns(closes, 1)
	benchRet1 := ta.Returns(benchCloses, 1)
	t.addNumeric("beta_60d", ta.RollingBeta(assetRet1, benchRet1, 60))
	t.addNumeric("corr_20d", ta.RollingCorr(assetRet1, benchRet1, 20))

	t.addNumeric("bench_ret_1d", benchRet1)
	t.addNumeric("bench_ret_5d", ta.Returns(benchCloses, 5))
	t.addNumeric("bench_ret_20d", ta.Returns(benchCloses, 20))
	t.addNumeric("bench_vol_20d", ta.RollingStd(benchRet1, 20))
}

func addCalendarFeatures(t *Table, dates []time.Time) {
	dow := make([]string, len(dates))
	month := make([]string, len(dates))
	for i, d := range dates {
		dow[i] = d.Weekday().String()[:3]
		month[i] = d.Month().String()[:3]
	}
	t.addCategorical("day_of_week", dow)
	t.addCategorical("month", month)
}

// ratioMinusOne returns a/b - 1 elementwise, NaN where b is zero or either
// side is NaN.
func ratioMinusOne(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if b[i] == 0 || ta.AnyNaN(a[i], b[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = a[i]/b[i] - 1
	}
	return out
}

// divideBy returns a/b elementwise, NaN where b is zero or either side is
// NaN.
func divideBy(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if b[i] == 0 || ta.AnyNaN(a[i], b[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = a[i] / b[i]
	}
	return out
}
