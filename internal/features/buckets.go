package features

import (
	"math"
	"sort"

	talib "github.com/markcheno/go-talib"

	"alphasmith/internal/ta"
)

const (
	bucketWindow   = 252
	bucketMinValid = 60
	bucketNA       = "na"
)

// archetypeScores is a fixed prior per regime, kept stable across training
// runs so the column means the same thing in every artifact.
var archetypeScores = map[string]float64{
	"up_low": 0.9, "up_mid": 0.7, "up_high": 0.5,
	"flat_low": 0.5, "flat_mid": 0.4, "flat_high": 0.3,
	"down_low": 0.2, "down_mid": 0.15, "down_high": 0.1,
}

// addBucketFeatures classifies each row into volatility and volume terciles
// and a trend direction, then combines trend and volatility into a regime
// archetype. Terciles are computed over the trailing year only, so early rows
// where the window is too thin read "na".
func addBucketFeatures(t *Table, closes, volumes []float64) {
	vol20 := ta.RollingStd(ta.Returns(closes, 1), 20)
	sma50 := ta.MaskHead(talib.Sma(closes, 50), 49)
	sma200 := ta.MaskHead(talib.Sma(closes, 200), 199)

	n := len(closes)
	volBucket := make([]string, n)
	volumeBucket := make([]string, n)
	trendBucket := make([]string, n)
	archetype := make([]string, n)
	score := make([]float64, n)

	for i := 0; i < n; i++ {
		volBucket[i] = tercile(vol20, i)
		volumeBucket[i] = tercile(volumes, i)
		trendBucket[i] = trendClass(closes[i], sma50[i], sma200[i])
		if volBucket[i] == bucketNA || trendBucket[i] == bucketNA {
			archetype[i] = bucketNA
			score[i] = math.NaN()
			continue
		}
		archetype[i] = trendBucket[i] + "_" + volBucket[i]
		score[i] = archetypeScores[archetype[i]]
	}

	t.addCategorical("vol_bucket", volBucket)
	t.addCategorical("volume_bucket", volumeBucket)
	t.addCategorical("trend_bucket", trendBucket)
	t.addCategorical("archetype", archetype)
	t.addNumeric("archetype_score", score)
}

// tercile places v[i] within the terciles of the trailing window ending at i.
// The window includes the current value, so the classification uses no
// information beyond row i.
func tercile(v []float64, i int) string {
	if math.IsNaN(v[i]) {
		return bucketNA
	}
	lo := i - bucketWindow + 1
	if lo < 0 {
		lo = 0
	}
	window := make([]float64, 0, i-lo+1)
	for j := lo; j <= i; j++ {
		if !math.IsNaN(v[j]) {
			window = append(window, v[j])
		}
	}
	if len(window) < bucketMinValid {
		return bucketNA
	}
	sort.Float64s(window)
	q1 := window[len(window)/3]
	q2 := window[2*len(window)/3]
	switch {
	case v[i] <= q1:
		return "low"
	case v[i] <= q2:
		return "mid"
	default:
		return "high"
	}
}

func trendClass(close, sma50, sma200 float64) string {
	if ta.AnyNaN(close, sma50, sma200) {
		return bucketNA
	}
	switch {
	case close > sma50 && sma50 > sma200:
		return "up"
	case close < sma50 && sma50 < sma200:
		return "down"
	default:
		return "flat"
	}
}
