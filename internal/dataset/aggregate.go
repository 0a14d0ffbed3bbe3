package dataset

import (
	"fmt"
	"math"
	"slices"
)

// Reducer collapses one aggregation window of a parameter into a single value.
type Reducer func(values []float64) float64

// Reducers maps parameter names to their reducer. Parameters without an entry
// are summed.
type Reducers map[string]Reducer

// Sum adds the non-NaN values; an all-NaN window yields NaN.
func Sum(values []float64) float64 {
	total, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			total += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return total
}

// Mean averages the non-NaN values.
func Mean(values []float64) float64 {
	total, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			total += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

// Min returns the smallest non-NaN value.
func Min(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if !math.IsNaN(v) && (math.IsNaN(out) || v < out) {
			out = v
		}
	}
	return out
}

// Max returns the largest non-NaN value.
func Max(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if !math.IsNaN(v) && (math.IsNaN(out) || v > out) {
			out = v
		}
	}
	return out
}

// Last returns the final value of the window.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// ReducerByName resolves the reducer names used in vendor column specs.
func ReducerByName(name string) (Reducer, error) {
	switch name {
	case "", "sum":
		return Sum, nil
	case "mean":
		return Mean, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	case "last":
		return Last, nil
	default:
		return nil, fmt.Errorf("%w: unknown reducer %q", ErrConfig, name)
	}
}

// Aggregate downsamples every subject to freq seconds. Windows hold
// freq/base consecutive samples, are anchored at each subject's first sample
// and a trailing partial window is dropped. Each window takes the timestamp and
// phase of its first sample. An irregular dataset is regularized first.
func (d *Dataset) Aggregate(freq int64, reducers Reducers) (*Dataset, error) {
	src := d
	if !d.regular {
		var err error
		if src, err = d.Regularize(); err != nil {
			return nil, fmt.Errorf("failed to regularize before aggregation: %w", err)
		}
	}
	if !slices.Contains(src.allowed, freq) {
		return nil, &AggregationFrequencyError{Frequency: freq, Allowed: src.AllowedFrequencies()}
	}
	if freq == src.freq {
		return src, nil
	}

	size := int(freq / src.freq)
	reduce := make([]Reducer, len(src.parameters))
	for i, p := range src.parameters {
		reduce[i] = Sum
		if r, ok := reducers[p]; ok && r != nil {
			reduce[i] = r
		}
	}

	var rows []Observation
	window := make([]float64, size)
	for _, s := range src.order {
		part := src.subjects[s]
		n := len(part) / size
		if n == 0 {
			return nil, fmt.Errorf("%w: subject %s has %d observations, fewer than one %ds window", ErrValue, s, len(part), freq)
		}
		for k := 0; k < n; k++ {
			chunk := part[k*size : (k+1)*size]
			row := Observation{
				Subject:  s,
				Time:     chunk[0].Time,
				Interval: k,
				Phase:    chunk[0].Phase,
				Values:   make([]float64, len(src.parameters)),
			}
			for p := range src.parameters {
				for i, o := range chunk {
					window[i] = o.Values[p]
				}
				row.Values[p] = reduce[p](window)
			}
			rows = append(rows, row)
		}
	}

	src.opts.sink.Debug("Aggregated %d subjects from %ds to %ds (%d samples per window)", len(src.order), src.freq, freq, size)
	return src.derive(rows, freq)
}
