package dataset

import (
	"fmt"
	"math"
	"time"
)

// TimeLayout is the canonical date_time format of the exported table.
const TimeLayout = "2006-01-02 15:04:05"

// Phase values of the light column.
const (
	Dark  = 0
	Light = 1
)

// Observation is one row of the canonical table. Values is aligned with the
// owning table's Parameters; a missing value is NaN.
type Observation struct {
	Subject  string
	Time     time.Time
	Interval int
	Phase    int
	Values   []float64
}

func (o Observation) clone() Observation {
	o.Values = append([]float64(nil), o.Values...)
	return o
}

// Table is the long-format observation table produced by the parser layer.
type Table struct {
	Parameters []string
	// HasPhase is false when the source carried no light column.
	HasPhase bool
	Rows     []Observation
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Parameters: append([]string(nil), t.Parameters...),
		HasPhase:   t.HasPhase,
		Rows:       make([]Observation, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = row.clone()
	}
	return out
}

// Value returns the named parameter of row i, or NaN when absent.
func (t *Table) Value(i int, param string) float64 {
	for j, p := range t.Parameters {
		if p == param {
			return t.Rows[i].Values[j]
		}
	}
	return math.NaN()
}

// Subjects lists subject ids in first-appearance order.
func (t *Table) Subjects() []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		if !seen[row.Subject] {
			seen[row.Subject] = true
			out = append(out, row.Subject)
		}
	}
	return out
}

func (t *Table) validate() error {
	seen := make(map[string]bool, len(t.Parameters))
	for _, p := range t.Parameters {
		if seen[p] {
			return fmt.Errorf("%w: parameter %q appears more than once", ErrHeaderNotUnique, p)
		}
		seen[p] = true
	}
	for i, row := range t.Rows {
		if row.Subject == "" {
			return fmt.Errorf("%w: row %d has no subject", ErrSubjectID, i)
		}
		if len(row.Values) != len(t.Parameters) {
			return fmt.Errorf("%w: row %d has %d values for %d parameters", ErrValue, i, len(row.Values), len(t.Parameters))
		}
	}
	return nil
}

// MergeTables stacks tables whose subjects are disjoint. The parameter list is
// the union in first-appearance order; parameters missing from a table are NaN.
func MergeTables(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", ErrValue)
	}

	params, index := unionParameters(tables)
	out := &Table{Parameters: params, HasPhase: true}
	owner := make(map[string]int)

	for ti, t := range tables {
		if !t.HasPhase {
			out.HasPhase = false
		}
		for _, s := range t.Subjects() {
			if prev, ok := owner[s]; ok && prev != ti {
				return nil, fmt.Errorf("%w: subject %s appears in more than one source", ErrSubjectID, s)
			}
			owner[s] = ti
		}
		for _, row := range t.Rows {
			out.Rows = append(out.Rows, remap(row, t.Parameters, index, len(params)))
		}
	}
	return out, nil
}

func unionParameters(tables []*Table) ([]string, map[string]int) {
	var params []string
	index := make(map[string]int)
	for _, t := range tables {
		for _, p := range t.Parameters {
			if _, ok := index[p]; !ok {
				index[p] = len(params)
				params = append(params, p)
			}
		}
	}
	return params, index
}

func remap(row Observation, from []string, index map[string]int, width int) Observation {
	values := make([]float64, width)
	for i := range values {
		values[i] = math.NaN()
	}
	for i, p := range from {
		values[index[p]] = row.Values[i]
	}
	row.Values = values
	return row
}
