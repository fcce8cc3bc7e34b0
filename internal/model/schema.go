package model

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"alphasmith/internal/domain"
	"alphasmith/internal/features"
)

// FallbackCode encodes categorical levels the encoder never saw in
// training. It sits below every trained code so unseen levels land in a
// branch of their own rather than aliasing a real level.
const FallbackCode = float64(-1)

// Encoder maps one categorical column's levels to their integer codes
// (position in Levels). Levels are sorted at build time so the same training
// data always produces the same codes.
type Encoder struct {
	Name   string   `json:"name"`
	Levels []string `json:"levels"`
}

// Schema is the ordered feature layout a trained model expects: numeric
// columns first, then one encoded code per categorical column. It is
// persisted inside the artifact and reapplied verbatim at prediction time.
type Schema struct {
	Numeric  []string  `json:"numeric"`
	Encoders []Encoder `json:"encoders"`
}

func BuildSchema(t *features.Table) Schema {
	s := Schema{Numeric: append([]string(nil), t.NumericNames()...)}
	for _, col := range t.Categorical {
		seen := make(map[string]struct{})
		levels := make([]string, 0, 8)
		for _, v := range col.Values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			levels = append(levels, v)
		}
		sort.Strings(levels)
		s.Encoders = append(s.Encoders, Encoder{Name: col.Name, Levels: levels})
	}
	return s
}

func (s Schema) Width() int { return len(s.Numeric) + len(s.Encoders) }

// Names returns the feature names in vector order.
func (s Schema) Names() []string {
	names := make([]string, 0, s.Width())
	names = append(names, s.Numeric...)
	for _, e := range s.Encoders {
		names = append(names, e.Name)
	}
	return names
}

// Reconcile reports how a fresh table lined up against the schema.
type Reconcile struct {
	MissingNumeric     []string
	MissingCategorical []string
	Unseen             map[string]int
}

func (r Reconcile) Clean() bool {
	return len(r.MissingNumeric) == 0 && len(r.MissingCategorical) == 0 && len(r.Unseen) == 0
}

// Log emits one warning per reconciliation issue. Callers invoke it once
// per table, not per row.
func (r Reconcile) Log(symbol string) {
	if len(r.MissingNumeric) > 0 {
		log.Warn().Str("symbol", symbol).Strs("columns", r.MissingNumeric).
			Msg("numeric features missing from table, filled with zeros")
	}
	if len(r.MissingCategorical) > 0 {
		log.Warn().Str("symbol", symbol).Strs("columns", r.MissingCategorical).
			Msg("categorical features missing from table, filled with fallback code")
	}
	for name, count := range r.Unseen {
		log.Warn().Str("symbol", symbol).Str("column", name).Int("rows", count).
			Msg("unseen categorical levels mapped to fallback code")
	}
}

// Encode projects a table onto the schema's column order. Columns the table
// lacks are filled (zeros for numerics, fallback codes for categoricals)
// and reported; columns the schema does not know are ignored. Only when the
// table covers none of the schema at all does Encode fail.
func (s Schema) Encode(t *features.Table) ([][]float64, Reconcile, error) {
	rows := t.Rows()
	rec := Reconcile{}
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, s.Width())
	}

	usable := 0
	for ci, name := range s.Numeric {
		col, ok := t.NumericByName(name)
		if !ok {
			rec.MissingNumeric = append(rec.MissingNumeric, name)
			continue
		}
		usable++
		for i := 0; i < rows; i++ {
			out[i][ci] = col[i]
		}
	}
	for ei, enc := range s.Encoders {
		ci := len(s.Numeric) + ei
		col, ok := t.CategoricalByName(enc.Name)
		if !ok {
			rec.MissingCategorical = append(rec.MissingCategorical, enc.Name)
			for i := 0; i < rows; i++ {
				out[i][ci] = FallbackCode
			}
			continue
		}
		usable++
		codes := make(map[string]float64, len(enc.Levels))
		for idx, level := range enc.Levels {
			codes[level] = float64(idx)
		}
		for i := 0; i < rows; i++ {
			code, ok := codes[col[i]]
			if !ok {
				code = FallbackCode
				if rec.Unseen == nil {
					rec.Unseen = make(map[string]int)
				}
				rec.Unseen[enc.Name]++
			}
			out[i][ci] = code
		}
	}

	if usable == 0 {
		return nil, rec, fmt.Errorf("table %s covers no trained feature: %w", t.Symbol, domain.ErrSchemaMismatch)
	}
	return out, rec, nil
}
