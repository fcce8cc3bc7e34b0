package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder wraps the pipeline's Prometheus instruments. A nil *Recorder is
// a no-op, so call sites never guard.
type Recorder struct {
	fetchesTotal     *prometheus.CounterVec
	cacheTotal       *prometheus.CounterVec
	trainingRuns     *prometheus.CounterVec
	trainingAccuracy *prometheus.GaugeVec
	predictions      *prometheus.CounterVec
	backtestsTotal   prometheus.Counter
	errorsTotal      *prometheus.CounterVec
	opDuration       *prometheus.HistogramVec
}

// New registers the instruments on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registerer; tests pass a fresh
// prometheus.NewRegistry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphasmith_fetches_total",
				Help: "Market data fetches by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		cacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphasmith_history_cache_total",
				Help: "History cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		trainingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphasmith_training_runs_total",
				Help: "Completed training runs by model kind and outcome",
			},
			[]string{"model_kind", "outcome"},
		),
		trainingAccuracy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphasmith_training_accuracy",
				Help: "Latest cross-validated accuracy per model slot",
			},
			[]string{"model_key"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphasmith_predictions_total",
				Help: "Ensemble predictions by direction",
			},
			[]string{"direction"},
		),
		backtestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "alphasmith_backtests_total",
				Help: "Completed backtest simulations",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphasmith_errors_total",
				Help: "Errors by type",
			},
			[]string{"type"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphasmith_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordFetch(symbol, outcome string) {
	if r == nil {
		return
	}
	r.fetchesTotal.WithLabelValues(symbol, outcome).Inc()
}

func (r *Recorder) RecordCache(outcome string) {
	if r == nil {
		return
	}
	r.cacheTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordTrainingRun(kind, outcome string) {
	if r == nil {
		return
	}
	r.trainingRuns.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) SetTrainingAccuracy(modelKey string, accuracy float64) {
	if r == nil {
		return
	}
	r.trainingAccuracy.WithLabelValues(modelKey).Set(accuracy)
}

func (r *Recorder) RecordPrediction(direction string) {
	if r == nil {
		return
	}
	r.predictions.WithLabelValues(direction).Inc()
}

func (r *Recorder) RecordBacktest() {
	if r == nil {
		return
	}
	r.backtestsTotal.Inc()
}

func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) ObserveDuration(op string, seconds float64) {
	if r == nil {
		return
	}
	r.opDuration.WithLabelValues(op).Observe(seconds)
}
