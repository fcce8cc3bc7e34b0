package features

import (
	"math"

	"github.com/narumiruna/go-iforest/pkg/iforest"

	"alphasmith/internal/ta"
)

const (
	defaultAnomalyWarmup = 252
	defaultAnomalyRefit  = 63
	anomalyMinFit        = 50
)

// addAnomalyFeature scores how unusual each bar looks against the symbol's
// own history. The forest is refit on a fixed row cadence and only ever fit
// on rows before the block it scores, so the column stays causal. Rows
// before the warmup, and blocks without enough clean history to fit, read
// NaN. Forest sampling is randomized, so scores are not reproducible across
// runs; the column is opt-in for that reason.
func addAnomalyFeature(t *Table, opens, highs, lows, closes, volumes []float64, opts AnomalyOptions) {
	n := len(closes)
	warmup := opts.Warmup
	if warmup <= 0 {
		warmup = defaultAnomalyWarmup
	}
	refit := opts.Refit
	if refit <= 0 {
		refit = defaultAnomalyRefit
	}

	ret1 := ta.Returns(closes, 1)
	volZ := ta.RollingZ(volumes, 20)
	vecs := make([][]float64, n)
	for i := 0; i < n; i++ {
		gap := math.NaN()
		if i > 0 && closes[i-1] != 0 {
			gap = opens[i]/closes[i-1] - 1
		}
		rng := math.NaN()
		if closes[i] != 0 {
			rng = (highs[i] - lows[i]) / closes[i]
		}
		v := []float64{ret1[i], gap, rng, volZ[i]}
		if !ta.AnyNaN(v...) {
			vecs[i] = v
		}
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = math.NaN()
	}

	for start := warmup; start < n; start += refit {
		end := start + refit
		if end > n {
			end = n
		}

		train := make([][]float64, 0, start)
		for i := 0; i < start; i++ {
			if vecs[i] != nil {
				train = append(train, vecs[i])
			}
		}
		if len(train) < anomalyMinFit {
			continue
		}

		block := make([][]float64, 0, end-start)
		idx := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			if vecs[i] != nil {
				block = append(block, vecs[i])
				idx = append(idx, i)
			}
		}
		if len(block) == 0 {
			continue
		}

		forest := iforest.New()
		forest.Fit(train)
		for k, s := range forest.Score(block) {
			scores[idx[k]] = s
		}
	}

	t.addNumeric("bar_anomaly", scores)
}
