package model

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/domain"
	"alphasmith/internal/features"
)

func testTrainer() *Trainer {
	return NewTrainer(trace.NewNoopTracerProvider().Tracer("test"), Config{})
}

// labeledTable builds a pooled-style table where the label is a clean
// function of x1, with a broken all-NaN column mixed in.
func labeledTable(rows int) *features.Table {
	dates := make([]time.Time, rows)
	x1 := make([]float64, rows)
	x2 := make([]float64, rows)
	broken := make([]float64, rows)
	regime := make([]string, rows)
	symbols := make([]string, rows)
	labels := make([]int8, rows)

	date := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		dates[i] = date
		date = date.AddDate(0, 0, 1)

		if i%2 == 0 {
			x1[i] = 1 + float64(i)*0.001
			labels[i] = 1
			regime[i] = "up"
		} else {
			x1[i] = -1 - float64(i)*0.001
			labels[i] = 0
			regime[i] = "down"
		}
		x2[i] = float64(i % 5)
		broken[i] = math.NaN()
		symbols[i] = "TEST"
	}
	labels[rows-1] = features.LabelUndefined
	labels[rows-2] = features.LabelUndefined

	return &features.Table{
		Symbol: "TEST",
		Dates:  dates,
		Numeric: []features.NumericColumn{
			{Name: "x1", Values: x1},
			{Name: "x2", Values: x2},
			{Name: "broken", Values: broken},
		},
		Categorical: []features.CategoricalColumn{
			{Name: "regime", Values: regime},
			{Name: "symbol", Values: symbols},
		},
		Label: labels,
	}
}

func TestTrainDropsAllNaNColumnAndSucceeds(t *testing.T) {
	t.Parallel()

	tab := labeledTable(300)
	artifact, report, err := testTrainer().Train(context.Background(), tab, domain.KindXGBoost, 5)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	for _, name := range artifact.Schema.Numeric {
		if name == "broken" {
			t.Fatal("all-NaN column survived into the trained schema")
		}
	}
	if report.Rows != 298 {
		t.Fatalf("clean rows = %d, want 298", report.Rows)
	}
	if report.Folds != 5 {
		t.Fatalf("folds = %d, want 5", report.Folds)
	}
	if report.Accuracy < 0.9 {
		t.Fatalf("accuracy %.3f on separable data, want >= 0.9", report.Accuracy)
	}
	if len(report.Symbols) != 1 || report.Symbols[0] != "TEST" {
		t.Fatalf("symbols = %v, want [TEST]", report.Symbols)
	}
	if !report.TrainedFrom.Before(report.TrainedTo) {
		t.Fatalf("trained window inverted: %v .. %v", report.TrainedFrom, report.TrainedTo)
	}
	if artifact.BoostRounds <= 0 {
		t.Fatalf("boost rounds = %d", artifact.BoostRounds)
	}
}

func TestTrainInsufficientSamples(t *testing.T) {
	t.Parallel()

	tab := labeledTable(40)
	_, _, err := testTrainer().Train(context.Background(), tab, domain.KindGradBoost, 5)
	if !errors.Is(err, domain.ErrInsufficientSamples) {
		t.Fatalf("err = %v, want insufficient samples", err)
	}
}

func TestTrainRejectsBadArguments(t *testing.T) {
	t.Parallel()

	tab := labeledTable(300)
	if _, _, err := testTrainer().Train(context.Background(), tab, "lightgbm", 5); err == nil {
		t.Fatal("accepted unknown kind")
	}
	if _, _, err := testTrainer().Train(context.Background(), tab, domain.KindXGBoost, 0); err == nil {
		t.Fatal("accepted zero horizon")
	}
}

func TestArtifactEncodeDecodePredict(t *testing.T) {
	t.Parallel()

	tab := labeledTable(300)
	for _, kind := range domain.AllModelKinds {
		artifact, _, err := testTrainer().Train(context.Background(), labeledTable(300), kind, 5)
		if err != nil {
			t.Fatalf("%s: Train: %v", kind, err)
		}

		blob, err := artifact.Encode()
		if err != nil {
			t.Fatalf("%s: Encode: %v", kind, err)
		}
		restored, err := DecodeArtifact(blob)
		if err != nil {
			t.Fatalf("%s: Decode: %v", kind, err)
		}
		if restored.Kind != kind || restored.HorizonDays != 5 {
			t.Fatalf("%s: restored %s/%dd", kind, restored.Kind, restored.HorizonDays)
		}
		if len(restored.Schema.Numeric) != len(artifact.Schema.Numeric) {
			t.Fatalf("%s: schema shrank over round trip", kind)
		}

		got, asOf, err := restored.PredictLatest(tab)
		if err != nil {
			t.Fatalf("%s: PredictLatest: %v", kind, err)
		}
		want, _, err := artifact.PredictLatest(tab)
		if err != nil {
			t.Fatalf("%s: PredictLatest on original: %v", kind, err)
		}
		if math.Abs(got.Probability-want.Probability) > 1e-9 || got.Class != want.Class {
			t.Fatalf("%s: round trip changed prediction: %+v vs %+v", kind, got, want)
		}
		if asOf.IsZero() {
			t.Fatalf("%s: prediction has no as-of date", kind)
		}
	}
}

func TestDecodeArtifactRejectsUnknownVersion(t *testing.T) {
	t.Parallel()

	artifact, _, err := testTrainer().Train(context.Background(), labeledTable(300), domain.KindDeepBoost, 1)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	blob, err := artifact.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tampered := strings.Replace(string(blob), `"schema_version":1`, `"schema_version":99`, 1)
	if _, err := DecodeArtifact([]byte(tampered)); err == nil {
		t.Fatal("decoded artifact with unknown schema version")
	}
}
