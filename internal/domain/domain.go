package domain

import (
	"fmt"
	"time"
)

// ModelKind identifies one of the boosted-tree variants the pipeline trains.
// Behavior differences between kinds are declared by configuration, never
// probed at runtime.
type ModelKind string

const (
	KindXGBoost   ModelKind = "xgboost"
	KindGradBoost ModelKind = "gradboost"
	KindDeepBoost ModelKind = "deepboost"
)

// AllModelKinds lists every trainable kind in canonical order.
var AllModelKinds = []ModelKind{KindXGBoost, KindGradBoost, KindDeepBoost}

func (k ModelKind) Valid() bool {
	switch k {
	case KindXGBoost, KindGradBoost, KindDeepBoost:
		return true
	}
	return false
}

// RegistryKey names a trained model slot, e.g. "xgboost_5d". Artifact files
// and accuracy registry entries share this key.
func RegistryKey(kind ModelKind, horizonDays int) string {
	return fmt.Sprintf("%s_%dd", kind, horizonDays)
}

// FusionMode selects how sub-model probabilities are combined.
type FusionMode string

const (
	FusionAverage  FusionMode = "average"
	FusionWeighted FusionMode = "weighted"
	FusionVoting   FusionMode = "voting"
)

func (m FusionMode) Valid() bool {
	switch m {
	case FusionAverage, FusionWeighted, FusionVoting:
		return true
	}
	return false
}

// Confidence buckets a fused probability by distance from the decision
// boundary. Thresholds are configuration; the tiers are fixed.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type SignalDirection string

const (
	DirectionLong  SignalDirection = "long"
	DirectionShort SignalDirection = "short"
	DirectionHold  SignalDirection = "hold"
)

// ModelResult is a single classifier's verdict for one symbol on one day.
type ModelResult struct {
	Kind        ModelKind `json:"model_kind"`
	Class       int       `json:"class"`       // 1 = up, 0 = down or flat
	Probability float64   `json:"probability"` // P(class == 1)
}

// EnsemblePrediction is the fused output for one symbol as of one trading
// day. It is derived data: recomputable from artifacts plus history.
type EnsemblePrediction struct {
	Symbol      string        `json:"symbol"`
	AsOf        time.Time     `json:"as_of"`
	TargetDate  time.Time     `json:"target_date"`
	HorizonDays int           `json:"horizon_days"`
	Price       float64       `json:"price"`
	Models      []ModelResult `json:"models"`

	// Probability is the fused score: mean or weighted-mean P(up), or in
	// voting mode the share of the vote the majority class won.
	// UpProbability is always the up-class view and is what threshold
	// policies (direction mapping, backtest entries) consume.
	Probability   float64 `json:"probability"`
	UpProbability float64 `json:"up_probability"`

	Consistency int             `json:"consistency"` // percent of models agreeing with the majority
	Confidence  Confidence      `json:"confidence"`
	Direction   SignalDirection `json:"direction"`
	Mode        FusionMode      `json:"mode"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade is an immutable fill record produced by the backtest simulator.
// Price is the slippage-adjusted fill price; Commission is charged on top.
type Trade struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	Side        TradeSide `json:"side"`
	Price       float64   `json:"price"`
	Shares      float64   `json:"shares"`
	Value       float64   `json:"value"`
	Commission  float64   `json:"commission"`
	Probability float64   `json:"probability"`
}

// TrainReport summarizes one completed training run for one (kind, horizon).
type TrainReport struct {
	Kind        ModelKind `json:"model_kind"`
	HorizonDays int       `json:"horizon_days"`
	Symbols     []string  `json:"symbols"`
	Rows        int       `json:"rows"`
	Features    int       `json:"features"`
	Folds       int       `json:"folds"`
	Accuracy    float64   `json:"accuracy"`
	AccuracyStd float64   `json:"accuracy_std"`
	BoostRounds int       `json:"boost_rounds"`
	TrainedFrom time.Time `json:"trained_from"`
	TrainedTo   time.Time `json:"trained_to"`
	TrainedAt   time.Time `json:"trained_at"`
}
