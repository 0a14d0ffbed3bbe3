package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// IntervalCount is one observed inter-sample interval and how often it occurred.
type IntervalCount struct {
	Seconds int64
	Count   int
}

// observedIntervals returns the consecutive differences of rows, most frequent
// first (ties broken by the shorter interval).
func observedIntervals(rows []Observation) []IntervalCount {
	counts := make(map[int64]int)
	for i := 1; i < len(rows); i++ {
		counts[FrequencySeconds(rows[i].Time.Sub(rows[i-1].Time))]++
	}
	out := make([]IntervalCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, IntervalCount{Seconds: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Seconds < out[j].Seconds
	})
	return out
}

// analyzeFrequency determines each subject's dominant interval and the dataset
// frequency. Irregular subjects are reported through the sink, never dropped.
func (d *Dataset) analyzeFrequency(hint int64) error {
	d.subjectFreq = make(map[string]int64, len(d.order))
	d.intervals = make(map[string][]IntervalCount, len(d.order))
	d.regular = true

	candidates := make(map[int64]bool)
	for _, s := range d.order {
		observed := observedIntervals(d.subjects[s])
		d.intervals[s] = observed

		switch {
		case len(observed) == 0:
			if hint <= 0 {
				return fmt.Errorf("%w: subject %s has a single observation, its frequency cannot be determined", ErrValue, s)
			}
			d.subjectFreq[s] = hint
		default:
			d.subjectFreq[s] = observed[0].Seconds
			if len(observed) > 1 {
				d.regular = false
				d.opts.sink.Warn("Subject %s is sampled irregularly, using %ds (observed: %s)", s, observed[0].Seconds, formatIntervals(observed))
			}
		}
		candidates[d.subjectFreq[s]] = true
	}

	if len(candidates) > 1 {
		freqs := make([]int64, 0, len(candidates))
		for f := range candidates {
			freqs = append(freqs, f)
		}
		sort.Slice(freqs, func(i, j int) bool { return freqs[i] < freqs[j] })
		return &FrequencyMismatchError{Frequencies: freqs}
	}
	for f := range candidates {
		d.freq = f
	}
	if d.freq <= 0 {
		return fmt.Errorf("%w: non-positive sampling frequency %d", ErrValue, d.freq)
	}
	return nil
}

func formatIntervals(counts []IntervalCount) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%ds x%d", c.Seconds, c.Count)
	}
	return strings.Join(parts, ", ")
}

func (d *Dataset) describeIntervals() string {
	var parts []string
	for _, s := range d.order {
		if len(d.intervals[s]) > 1 {
			parts = append(parts, s+": "+formatIntervals(d.intervals[s]))
		}
	}
	return strings.Join(parts, "; ")
}
