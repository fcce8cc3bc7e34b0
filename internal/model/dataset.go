package model

import (
	"fmt"
	"math"
	"time"

	"alphasmith/internal/domain"
	"alphasmith/internal/features"
)

// DefaultMinSamples is the floor on clean training rows; runs below it are
// rejected rather than fit on thin data.
const DefaultMinSamples = 100

// Dataset is the encoded, clean subset of a labeled table: rows with a
// defined label and no NaN feature, in date order.
type Dataset struct {
	X     [][]float64
	Y     []int
	Dates []time.Time
	Names []string
}

// BuildDataset encodes a labeled table against the schema and keeps only
// clean rows. minSamples <= 0 uses DefaultMinSamples.
func BuildDataset(t *features.Table, s Schema, minSamples int) (*Dataset, error) {
	if t.Label == nil {
		return nil, fmt.Errorf("table %s carries no labels", t.Symbol)
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	X, _, err := s.Encode(t)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Names: s.Names()}
	for i := range X {
		if t.Label[i] == features.LabelUndefined || hasNaN(X[i]) {
			continue
		}
		ds.X = append(ds.X, X[i])
		ds.Y = append(ds.Y, int(t.Label[i]))
		ds.Dates = append(ds.Dates, t.Dates[i])
	}

	if len(ds.X) < minSamples {
		return nil, fmt.Errorf("%d clean rows after NaN removal, need at least %d: %w",
			len(ds.X), minSamples, domain.ErrInsufficientSamples)
	}
	return ds, nil
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
