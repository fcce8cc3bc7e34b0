package features

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// LabelUndefined marks rows whose forward window extends past the series
// end; callers must filter these before training.
const LabelUndefined = int8(-1)

type NumericColumn struct {
	Name   string
	Values []float64 // NaN = missing
}

type CategoricalColumn struct {
	Name   string
	Values []string
}

// Table is a column-major feature table: one row per trading day, dates
// ascending. Numeric and categorical columns all share the row count.
// Label is nil for unlabeled tables; otherwise 1 = up, 0 = down or flat,
// LabelUndefined for the trailing horizon rows. Degraded tables carry the
// raw price columns only and must not be pooled for training.
type Table struct {
	Symbol      string
	Dates       []time.Time
	Numeric     []NumericColumn
	Categorical []CategoricalColumn
	Label       []int8
	Degraded    bool
}

func (t *Table) Rows() int { return len(t.Dates) }

func (t *Table) NumericNames() []string {
	names := make([]string, len(t.Numeric))
	for i, c := range t.Numeric {
		names[i] = c.Name
	}
	return names
}

func (t *Table) CategoricalNames() []string {
	names := make([]string, len(t.Categorical))
	for i, c := range t.Categorical {
		names[i] = c.Name
	}
	return names
}

func (t *Table) NumericByName(name string) ([]float64, bool) {
	for _, c := range t.Numeric {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

func (t *Table) CategoricalByName(name string) ([]string, bool) {
	for _, c := range t.Categorical {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// DropAllNaNNumeric removes numeric columns that hold no finite value at
// all and reports their names so the caller can log them.
func (t *Table) DropAllNaNNumeric() []string {
	var dropped []string
	kept := make([]NumericColumn, 0, len(t.Numeric))
	for _, col := range t.Numeric {
		allNaN := true
		for _, v := range col.Values {
			if !math.IsNaN(v) {
				allNaN = false
				break
			}
		}
		if allNaN {
			dropped = append(dropped, col.Name)
			continue
		}
		kept = append(kept, col)
	}
	t.Numeric = kept
	return dropped
}

// Concat pools per-symbol tables into one training table sorted by date,
// with a stable symbol tie-break for days shared across symbols. All inputs
// must carry identical column sets in identical order; the engine
// guarantees that for tables built with the same options.
func Concat(tables ...*Table) (*Table, error) {
	nonEmpty := tables[:0:0]
	for _, t := range tables {
		if t != nil && t.Rows() > 0 {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, fmt.Errorf("concat: no rows")
	}

	first := nonEmpty[0]
	for _, t := range nonEmpty[1:] {
		if err := sameSchema(first, t); err != nil {
			return nil, fmt.Errorf("concat %s with %s: %w", first.Symbol, t.Symbol, err)
		}
	}

	total := 0
	labeled := first.Label != nil
	for _, t := range nonEmpty {
		total += t.Rows()
		if (t.Label != nil) != labeled {
			return nil, fmt.Errorf("concat: mixed labeled and unlabeled tables")
		}
	}

	out := &Table{
		Dates:       make([]time.Time, 0, total),
		Numeric:     make([]NumericColumn, len(first.Numeric)),
		Categorical: make([]CategoricalColumn, len(first.Categorical)),
	}
	for i, c := range first.Numeric {
		out.Numeric[i] = NumericColumn{Name: c.Name, Values: make([]float64, 0, total)}
	}
	for i, c := range first.Categorical {
		out.Categorical[i] = CategoricalColumn{Name: c.Name, Values: make([]string, 0, total)}
	}
	if labeled {
		out.Label = make([]int8, 0, total)
	}

	symbols := make([]string, 0, total)
	for _, t := range nonEmpty {
		out.Dates = append(out.Dates, t.Dates...)
		for i := range t.Numeric {
			out.Numeric[i].Values = append(out.Numeric[i].Values, t.Numeric[i].Values...)
		}
		for i := range t.Categorical {
			out.Categorical[i].Values = append(out.Categorical[i].Values, t.Categorical[i].Values...)
		}
		if labeled {
			out.Label = append(out.Label, t.Label...)
		}
		for range t.Dates {
			symbols = append(symbols, t.Symbol)
		}
	}

	perm := make([]int, total)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		if !out.Dates[perm[a]].Equal(out.Dates[perm[b]]) {
			return out.Dates[perm[a]].Before(out.Dates[perm[b]])
		}
		return symbols[perm[a]] < symbols[perm[b]]
	})
	out.applyPermutation(perm)
	return out, nil
}

func sameSchema(a, b *Table) error {
	if len(a.Numeric) != len(b.Numeric) || len(a.Categorical) != len(b.Categorical) {
		return fmt.Errorf("column count mismatch")
	}
	for i := range a.Numeric {
		if a.Numeric[i].Name != b.Numeric[i].Name {
			return fmt.Errorf("numeric column %d: %q vs %q", i, a.Numeric[i].Name, b.Numeric[i].Name)
		}
	}
	for i := range a.Categorical {
		if a.Categorical[i].Name != b.Categorical[i].Name {
			return fmt.Errorf("categorical column %d: %q vs %q", i, a.Categorical[i].Name, b.Categorical[i].Name)
		}
	}
	return nil
}

func (t *Table) applyPermutation(perm []int) {
	dates := make([]time.Time, len(perm))
	for i, p := range perm {
		dates[i] = t.Dates[p]
	}
	t.Dates = dates

	for ci := range t.Numeric {
		vals := make([]float64, len(perm))
		for i, p := range perm {
			vals[i] = t.Numeric[ci].Values[p]
		}
		t.Numeric[ci].Values = vals
	}
	for ci := range t.Categorical {
		vals := make([]string, len(perm))
		for i, p := range perm {
			vals[i] = t.Categorical[ci].Values[p]
		}
		t.Categorical[ci].Values = vals
	}
	if t.Label != nil {
		labels := make([]int8, len(perm))
		for i, p := range perm {
			labels[i] = t.Label[p]
		}
		t.Label = labels
	}
}
