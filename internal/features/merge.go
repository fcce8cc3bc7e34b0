package features

import (
	"math"
	"sort"
	"time"

	"alphasmith/internal/domain"
)

// alignByDate projects benchmark closes onto the asset's date axis. Same-day
// closes merge directly; a date the benchmark skipped carries the prior
// benchmark close forward. Dates before the benchmark history starts are NaN.
func alignByDate(dates []time.Time, benchmark []domain.Bar) []float64 {
	bench := append([]domain.Bar(nil), benchmark...)
	domain.SortBars(bench)

	out := make([]float64, len(dates))
	last := math.NaN()
	j := 0
	for i, d := range dates {
		for j < len(bench) && !domain.TradingDay(bench[j].Date).After(d) {
			last = bench[j].Close
			j++
		}
		out[i] = last
	}
	return out
}

// locfBefore carries the most recent point strictly before each date forward,
// modeling a one-day publication lag. Dates before the first point get fill.
func locfBefore(dates []time.Time, points []Point, fill float64) []float64 {
	pts := append([]Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	out := make([]float64, len(dates))
	last := fill
	j := 0
	for i, d := range dates {
		for j < len(pts) && domain.TradingDay(pts[j].Date).Before(d) {
			last = pts[j].Value
			j++
		}
		out[i] = last
	}
	return out
}

func addAuxFeatures(t *Table, dates []time.Time, aux []AuxSeries) {
	for _, s := range aux {
		if s.Name == "" || len(s.Points) == 0 {
			continue
		}
		t.addNumeric(s.Name, locfBefore(dates, s.Points, math.NaN()))
	}
}

// addSentimentFeature always emits the column so trained schemas stay stable
// whether or not a sentiment provider is wired; absent scores read neutral.
func addSentimentFeature(t *Table, dates []time.Time, sentiment []Point) {
	t.addNumeric("sentiment", locfBefore(dates, sentiment, 0))
}
