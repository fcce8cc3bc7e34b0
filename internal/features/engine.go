package features

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/domain"
)

// DefaultMinHistoryDays is the degraded-mode boundary: histories shorter
// than this produce a raw-columns-only table.
const DefaultMinHistoryDays = 200

// Point is one dated observation of an auxiliary series.
type Point struct {
	Date  time.Time
	Value float64
}

// AuxSeries is a macro or alternative-data series merged into the table
// with a one-day publication lag.
type AuxSeries struct {
	Name   string
	Points []Point
}

// AnomalyOptions controls the isolation-forest bar-anomaly column.
type AnomalyOptions struct {
	Enabled bool
	Warmup  int // rows of prior history before the first score
	Refit   int // rows between forest refits
}

// Options parameterizes one Build call. The zero value produces an
// unlabeled table with the default degraded-mode boundary and no anomaly,
// sentiment or auxiliary columns.
type Options struct {
	// Horizon is the label horizon in trading days; 0 leaves Label nil.
	Horizon int

	// MinHistoryDays overrides the degraded-mode boundary; <=0 uses
	// DefaultMinHistoryDays.
	MinHistoryDays int

	Anomaly   AnomalyOptions
	Sentiment []Point
	Aux       []AuxSeries
}

// Engine derives the feature table from raw history. It is a pure
// transformation: every value in row i depends only on bars up to and
// including date i, so rebuilding from a truncated history reproduces the
// same leading rows.
type Engine struct {
	tracer trace.Tracer
}

func NewEngine(tracer trace.Tracer) *Engine {
	return &Engine{tracer: tracer}
}

// Build derives the table for one symbol. benchmark may be nil, which skips
// the relative-strength family. Histories shorter than the degraded-mode
// boundary return a raw-columns-only table and no error.
func (e *Engine) Build(ctx context.Context, bars []domain.Bar, benchmark []domain.Bar, opts Options) (*Table, error) {
	_, span := e.tracer.Start(ctx, "features.build")
	defer span.End()

	if len(bars) == 0 {
		return nil, fmt.Errorf("build features: no bars")
	}
	bars = append([]domain.Bar(nil), bars...)
	domain.SortBars(bars)

	minDays := opts.MinHistoryDays
	if minDays <= 0 {
		minDays = DefaultMinHistoryDays
	}

	symbol := bars[0].Symbol
	n := len(bars)
	dates := make([]time.Time, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		dates[i] = domain.TradingDay(b.Date)
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	t := &Table{Symbol: symbol, Dates: dates}
	t.addNumeric("open", opens)
	t.addNumeric("high", highs)
	t.addNumeric("low", lows)
	t.addNumeric("close", closes)
	t.addNumeric("volume", volumes)

	if n < minDays {
		log.Info().Str("symbol", symbol).Int("rows", n).Int("min_days", minDays).
			Msg("short history, emitting raw columns only")
		t.Degraded = true
		return t, nil
	}

	addReturnFeatures(t, closes)
	addTrendFeatures(t, highs, lows, closes)
	addOscillatorFeatures(t, highs, lows, closes)
	addVolatilityFeatures(t, opens, highs, lows, closes)
	addVolumeFeatures(t, closes, volumes)
	addPositionFeatures(t, closes)
	addCalendarFeatures(t, dates)
	addBucketFeatures(t, closes, volumes)

	if len(benchmark) > 0 {
		benchCloses := alignByDate(dates, benchmark)
		addRelativeStrength(t, closes, benchCloses)
	} else {
		log.Debug().Str("symbol", symbol).Msg("no benchmark series, skipping relative-strength features")
	}

	addAuxFeatures(t, dates, opts.Aux)
	addSentimentFeature(t, dates, opts.Sentiment)

	if opts.Anomaly.Enabled {
		addAnomalyFeature(t, opens, highs, lows, closes, volumes, opts.Anomaly)
	}

	symCol := make([]string, n)
	for i := range symCol {
		symCol[i] = symbol
	}
	t.addCategorical("symbol", symCol)

	if opts.Horizon > 0 {
		t.Label = forwardLabel(closes, opts.Horizon)
	}
	return t, nil
}

// forwardLabel marks row i as 1 when the close horizon days later is
// strictly above the close at i. Rows whose horizon extends past the end
// get LabelUndefined.
func forwardLabel(closes []float64, horizon int) []int8 {
	labels := make([]int8, len(closes))
	for i := range closes {
		if i+horizon >= len(closes) {
			labels[i] = LabelUndefined
			continue
		}
		if closes[i+horizon] > closes[i] {
			labels[i] = 1
		} else {
			labels[i] = 0
		}
	}
	return labels
}

func (t *Table) addNumeric(name string, values []float64) {
	t.Numeric = append(t.Numeric, NumericColumn{Name: name, Values: values})
}

func (t *Table) addCategorical(name string, values []string) {
	t.Categorical = append(t.Categorical, CategoricalColumn{Name: name, Values: values})
}
