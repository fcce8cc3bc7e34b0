package features

import (
	"math"
	"testing"
	"time"

	"alphasmith/internal/domain"
)

func TestAlignByDateCarriesForward(t *testing.T) {
	t.Parallel()

	dates := []time.Time{
		day(t, "2024-01-02"),
		day(t, "2024-01-03"),
		day(t, "2024-01-04"),
	}
	bench := []domain.Bar{
		{Symbol: "SPY", Date: day(t, "2024-01-04"), Close: 470},
		{Symbol: "SPY", Date: day(t, "2024-01-02"), Close: 468},
	}

	got := alignByDate(dates, bench)
	if got[0] != 468 {
		t.Fatalf("same-day merge: got %v, want 468", got[0])
	}
	if got[1] != 468 {
		t.Fatalf("missing benchmark day should carry forward: got %v", got[1])
	}
	if got[2] != 470 {
		t.Fatalf("later day: got %v, want 470", got[2])
	}
}

func TestAlignByDateBeforeHistory(t *testing.T) {
	t.Parallel()

	dates := []time.Time{day(t, "2024-01-02"), day(t, "2024-01-03")}
	bench := []domain.Bar{{Symbol: "SPY", Date: day(t, "2024-01-03"), Close: 470}}

	got := alignByDate(dates, bench)
	if !math.IsNaN(got[0]) {
		t.Fatalf("date before benchmark history should be NaN, got %v", got[0])
	}
	if got[1] != 470 {
		t.Fatalf("got %v, want 470", got[1])
	}
}

func TestLocfBeforeLagsOneDay(t *testing.T) {
	t.Parallel()

	dates := []time.Time{
		day(t, "2024-01-02"),
		day(t, "2024-01-03"),
		day(t, "2024-01-05"),
	}
	points := []Point{
		{Date: day(t, "2024-01-03"), Value: 2},
		{Date: day(t, "2024-01-02"), Value: 1},
	}

	got := locfBefore(dates, points, 0)
	want := []float64{0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %v, want %v (series %v)", i, got[i], want[i], got)
		}
	}
}

func TestSentimentDefaultsNeutral(t *testing.T) {
	t.Parallel()

	tb := &Table{Dates: []time.Time{day(t, "2024-01-02"), day(t, "2024-01-03")}}
	addSentimentFeature(tb, tb.Dates, nil)

	vals, ok := tb.NumericByName("sentiment")
	if !ok {
		t.Fatal("sentiment column missing")
	}
	for i, v := range vals {
		if v != 0 {
			t.Fatalf("row %d sentiment = %v, want neutral 0", i, v)
		}
	}
}
