package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alphasmith/internal/domain"
	"alphasmith/internal/features"
)

// ArtifactVersion is bumped whenever the envelope layout changes, so a
// prediction binary refusing an artifact it cannot read is an explicit
// error instead of silent misbehavior.
const ArtifactVersion = 1

// Artifact is the immutable persisted form of one trained model: the fitted
// booster plus everything prediction needs to rebuild its input exactly.
// Retraining writes a new artifact; nothing mutates a saved one.
type Artifact struct {
	SchemaVersion int              `json:"schema_version"`
	Kind          domain.ModelKind `json:"model_kind"`
	HorizonDays   int              `json:"horizon_days"`
	CreatedAt     time.Time        `json:"created_at"`
	Accuracy      float64          `json:"accuracy"`
	AccuracyStd   float64          `json:"accuracy_std"`
	BoostRounds   int              `json:"boost_rounds"`
	Schema        Schema           `json:"feature_schema"`
	ModelBlob     []byte           `json:"model_blob"`

	booster *Booster
}

// Encode serializes the artifact, booster included.
func (a *Artifact) Encode() ([]byte, error) {
	if a.booster == nil {
		return nil, errors.New("artifact holds no fitted model")
	}
	blob, err := a.booster.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal %s booster: %w", a.Kind, err)
	}
	a.ModelBlob = blob
	return json.Marshal(a)
}

// DecodeArtifact restores an artifact written by Encode, rejecting envelope
// versions this code does not understand.
func DecodeArtifact(b []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if a.SchemaVersion != ArtifactVersion {
		return nil, fmt.Errorf("artifact schema version %d, this build reads %d", a.SchemaVersion, ArtifactVersion)
	}
	if !a.Kind.Valid() {
		return nil, fmt.Errorf("artifact has unknown model kind %q", a.Kind)
	}
	booster, err := UnmarshalBooster(a.Kind, a.ModelBlob)
	if err != nil {
		return nil, fmt.Errorf("restore %s booster: %w", a.Kind, err)
	}
	a.booster = booster
	return &a, nil
}

// Predict scores one already-encoded feature vector.
func (a *Artifact) Predict(sample []float64) domain.ModelResult {
	class, prob := a.booster.PredictClass(sample)
	return domain.ModelResult{Kind: a.Kind, Class: class, Probability: prob}
}

// PredictLatest reconciles a fresh table against the trained schema and
// scores the most recent row with a complete feature vector. Rows with NaN
// features (warmup regions, gaps) are skipped from the end backwards.
func (a *Artifact) PredictLatest(t *features.Table) (domain.ModelResult, time.Time, error) {
	X, rec, err := a.Schema.Encode(t)
	if err != nil {
		return domain.ModelResult{}, time.Time{}, err
	}
	if !rec.Clean() {
		rec.Log(t.Symbol)
	}
	for i := len(X) - 1; i >= 0; i-- {
		if hasNaN(X[i]) {
			continue
		}
		return a.Predict(X[i]), t.Dates[i], nil
	}
	return domain.ModelResult{}, time.Time{}, fmt.Errorf("%s: no row with a complete feature vector: %w", t.Symbol, domain.ErrDataUnavailable)
}

// PredictTable scores every row the trained schema can fully cover. The
// returned slices are row-aligned with t; ok[i] is false where the encoded
// row still had NaNs (indicator warmup, gaps) and results[i] is zero.
func (a *Artifact) PredictTable(t *features.Table) (results []domain.ModelResult, ok []bool, err error) {
	X, rec, err := a.Schema.Encode(t)
	if err != nil {
		return nil, nil, err
	}
	if !rec.Clean() {
		rec.Log(t.Symbol)
	}
	results = make([]domain.ModelResult, len(X))
	ok = make([]bool, len(X))
	for i := range X {
		if hasNaN(X[i]) {
			continue
		}
		results[i] = a.Predict(X[i])
		ok[i] = true
	}
	return results, ok, nil
}
