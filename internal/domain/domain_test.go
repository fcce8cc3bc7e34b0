package domain

import (
	"testing"
	"time"
)

func TestRegistryKey(t *testing.T) {
	if got := RegistryKey(KindXGBoost, 5); got != "xgboost_5d" {
		t.Errorf("RegistryKey: got %q, want %q", got, "xgboost_5d")
	}
	if got := RegistryKey(KindDeepBoost, 20); got != "deepboost_20d" {
		t.Errorf("RegistryKey: got %q, want %q", got, "deepboost_20d")
	}
}

func TestModelKindValid(t *testing.T) {
	for _, k := range AllModelKinds {
		if !k.Valid() {
			t.Errorf("kind %q should be valid", k)
		}
	}
	if ModelKind("lightgbm").Valid() {
		t.Error("unknown kind should not be valid")
	}
}

func TestFusionModeValid(t *testing.T) {
	for _, m := range []FusionMode{FusionAverage, FusionWeighted, FusionVoting} {
		if !m.Valid() {
			t.Errorf("mode %q should be valid", m)
		}
	}
	if FusionMode("stacking").Valid() {
		t.Error("unknown mode should not be valid")
	}
}

func TestSortBars(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC) }
	bars := []Bar{{Date: d(3)}, {Date: d(1)}, {Date: d(2)}}
	SortBars(bars)
	for i := 0; i < len(bars)-1; i++ {
		if !bars[i].Date.Before(bars[i+1].Date) {
			t.Fatalf("bars not sorted at %d: %v >= %v", i, bars[i].Date, bars[i+1].Date)
		}
	}
}

func TestTradingDay(t *testing.T) {
	ts := time.Date(2024, 6, 3, 15, 30, 12, 0, time.FixedZone("EST", -5*3600))
	got := TradingDay(ts)
	want := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("TradingDay: got %v, want %v", got, want)
	}
}
