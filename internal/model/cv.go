package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"alphasmith/internal/domain"
)

// Fold is one expanding-window split: rows [0, TrainEnd) train, rows
// [TrainEnd, ValEnd) validate. Training rows always precede validation
// rows, which is what keeps the accuracy estimate out-of-sample on a time
// series.
type Fold struct {
	TrainEnd int
	ValEnd   int
}

// FoldScore is one fold's validation result.
type FoldScore struct {
	Fold      int
	TrainRows int
	ValRows   int
	Accuracy  float64
}

// temporalFolds cuts n time-ordered rows into k expanding-window folds.
// Returns nil when n is too small to give every block at least one row.
func temporalFolds(n, k int) []Fold {
	if k < 2 {
		k = 2
	}
	base := n / (k + 1)
	if base < 1 {
		return nil
	}
	folds := make([]Fold, k)
	for i := 1; i <= k; i++ {
		valEnd := base * (i + 1)
		if i == k {
			valEnd = n
		}
		folds[i-1] = Fold{TrainEnd: base * i, ValEnd: valEnd}
	}
	return folds
}

// CrossValidate estimates out-of-sample accuracy over k expanding-window
// folds and returns the per-fold scores with their mean and sample
// standard deviation. Any fold that fails to fit fails the whole run.
func CrossValidate(kind domain.ModelKind, ds *Dataset, opts TrainOptions, k int) (float64, float64, []FoldScore, error) {
	folds := temporalFolds(len(ds.X), k)
	if folds == nil {
		return 0, 0, nil, fmt.Errorf("%d rows cannot fill %d folds: %w", len(ds.X), k, domain.ErrInsufficientSamples)
	}

	scores := make([]FoldScore, 0, len(folds))
	accs := make([]float64, 0, len(folds))
	for fi, f := range folds {
		b, err := TrainBooster(kind, ds.X[:f.TrainEnd], ds.Y[:f.TrainEnd], ds.Names, opts)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("fold %d/%d: %w", fi+1, len(folds), err)
		}
		correct := 0
		for i := f.TrainEnd; i < f.ValEnd; i++ {
			if class, _ := b.PredictClass(ds.X[i]); class == ds.Y[i] {
				correct++
			}
		}
		acc := float64(correct) / float64(f.ValEnd-f.TrainEnd)
		scores = append(scores, FoldScore{
			Fold:      fi + 1,
			TrainRows: f.TrainEnd,
			ValRows:   f.ValEnd - f.TrainEnd,
			Accuracy:  acc,
		})
		accs = append(accs, acc)
	}

	mean := stat.Mean(accs, nil)
	std := stat.StdDev(accs, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std, scores, nil
}

// roundSearchHoldout is the share of rows reserved, chronologically last,
// for picking the boosting round count.
const roundSearchHoldout = 0.15

// searchRounds picks the boosting round count on a chronological holdout:
// candidates at and below the configured count are each fit on the early
// rows and scored on the late rows, and the smallest count within a tie of
// the best wins. Any failure falls back to the configured count, so the
// search can only trim rounds, never break a training run.
func searchRounds(kind domain.ModelKind, ds *Dataset, opts TrainOptions) int {
	cut := len(ds.X) - int(float64(len(ds.X))*roundSearchHoldout)
	if cut < 1 || cut >= len(ds.X) {
		return opts.Rounds
	}

	best := opts.Rounds
	bestAcc := -1.0
	for _, rounds := range roundLadder(opts.Rounds) {
		o := opts
		o.Rounds = rounds
		b, err := TrainBooster(kind, ds.X[:cut], ds.Y[:cut], ds.Names, o)
		if err != nil {
			continue
		}
		correct := 0
		for i := cut; i < len(ds.X); i++ {
			if class, _ := b.PredictClass(ds.X[i]); class == ds.Y[i] {
				correct++
			}
		}
		acc := float64(correct) / float64(len(ds.X)-cut)
		if acc > bestAcc {
			best, bestAcc = rounds, acc
		}
	}
	if bestAcc < 0 {
		return opts.Rounds
	}
	return best
}

// roundLadder is the ascending candidate list for searchRounds: half and
// three-quarters of the configured count, then the count itself, floored
// at 10 rounds and deduplicated.
func roundLadder(rounds int) []int {
	if rounds <= 10 {
		return []int{rounds}
	}
	ladder := []int{rounds / 2, rounds * 3 / 4, rounds}
	out := make([]int, 0, len(ladder))
	for _, r := range ladder {
		if r < 10 {
			r = 10
		}
		if len(out) > 0 && out[len(out)-1] == r {
			continue
		}
		out = append(out, r)
	}
	return out
}
