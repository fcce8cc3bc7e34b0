package model

import (
	"errors"
	"testing"
	"time"

	"alphasmith/internal/domain"
)

func temporalDataset(n int) *Dataset {
	ds := &Dataset{Names: []string{"x1", "x2"}}
	date := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		y := i % 2
		x1 := -1.0 + 0.001*float64(i)
		if y == 1 {
			x1 = 1.0 + 0.001*float64(i)
		}
		ds.X = append(ds.X, []float64{x1, float64(i % 7)})
		ds.Y = append(ds.Y, y)
		ds.Dates = append(ds.Dates, date)
		date = date.AddDate(0, 0, 1)
	}
	return ds
}

func TestTemporalFoldsOrdering(t *testing.T) {
	t.Parallel()

	const n, k = 300, 5
	folds := temporalFolds(n, k)
	if len(folds) != k {
		t.Fatalf("folds = %d, want %d", len(folds), k)
	}
	prevTrainEnd := 0
	for i, f := range folds {
		if f.TrainEnd <= 0 || f.ValEnd <= f.TrainEnd {
			t.Fatalf("fold %d: train [0,%d) validate [%d,%d) is not strictly ordered", i, f.TrainEnd, f.TrainEnd, f.ValEnd)
		}
		if f.TrainEnd <= prevTrainEnd && i > 0 {
			t.Fatalf("fold %d does not expand the training window: %d after %d", i, f.TrainEnd, prevTrainEnd)
		}
		prevTrainEnd = f.TrainEnd
	}
	if folds[len(folds)-1].ValEnd != n {
		t.Fatalf("last fold validates to %d, want %d", folds[len(folds)-1].ValEnd, n)
	}

	// With date-ordered rows, every training date precedes every
	// validation date in the same fold.
	ds := temporalDataset(n)
	for i, f := range folds {
		lastTrain := ds.Dates[f.TrainEnd-1]
		firstVal := ds.Dates[f.TrainEnd]
		if !lastTrain.Before(firstVal) {
			t.Fatalf("fold %d: training extends to %v, validation starts %v", i, lastTrain, firstVal)
		}
	}
}

func TestTemporalFoldsTooFewRows(t *testing.T) {
	t.Parallel()

	if folds := temporalFolds(4, 5); folds != nil {
		t.Fatalf("expected nil folds for 4 rows, got %v", folds)
	}
}

func TestCrossValidateLearnsSeparableSeries(t *testing.T) {
	t.Parallel()

	ds := temporalDataset(360)
	mean, std, scores, err := CrossValidate(domain.KindXGBoost, ds, TrainOptions{Rounds: 20, LearningRate: 0.1, MaxDepth: 3}, 5)
	if err != nil {
		t.Fatalf("CrossValidate: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("fold scores = %d, want 5", len(scores))
	}
	if mean < 0.9 {
		t.Fatalf("mean accuracy %.3f on separable data, want >= 0.9", mean)
	}
	if std < 0 {
		t.Fatalf("std = %v", std)
	}
}

func TestCrossValidateInsufficientRows(t *testing.T) {
	t.Parallel()

	ds := temporalDataset(8)
	_, _, _, err := CrossValidate(domain.KindXGBoost, ds, TrainOptions{}, 9)
	if !errors.Is(err, domain.ErrInsufficientSamples) {
		t.Fatalf("err = %v, want insufficient samples", err)
	}
}

func TestRoundLadder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rounds int
		want   []int
	}{
		{40, []int{20, 30, 40}},
		{12, []int{10, 12}},
		{10, []int{10}},
		{5, []int{5}},
	}
	for _, tc := range cases {
		got := roundLadder(tc.rounds)
		if len(got) != len(tc.want) {
			t.Fatalf("roundLadder(%d) = %v, want %v", tc.rounds, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("roundLadder(%d) = %v, want %v", tc.rounds, got, tc.want)
			}
		}
	}
}

func TestSearchRoundsStaysOnLadder(t *testing.T) {
	t.Parallel()

	ds := temporalDataset(300)
	opts := TrainOptions{Rounds: 40, LearningRate: 0.1, MaxDepth: 3}
	got := searchRounds(domain.KindXGBoost, ds, opts)
	onLadder := false
	for _, r := range roundLadder(opts.Rounds) {
		if got == r {
			onLadder = true
		}
	}
	if !onLadder {
		t.Fatalf("searchRounds chose %d, not on ladder %v", got, roundLadder(opts.Rounds))
	}
}

func TestSearchRoundsTinyDatasetKeepsConfigured(t *testing.T) {
	t.Parallel()

	ds := temporalDataset(4)
	if got := searchRounds(domain.KindGradBoost, ds, TrainOptions{Rounds: 40}); got != 40 {
		t.Fatalf("searchRounds on 4 rows = %d, want configured 40", got)
	}
}
