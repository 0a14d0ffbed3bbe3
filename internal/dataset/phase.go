package dataset

import (
	"fmt"
	"time"
)

// PhaseWindow marks the first transition away from the initial phase (index 0
// of Indices/Times) and the first transition back (index 1).
type PhaseWindow struct {
	Initial int
	Indices [2]int
	Times   [2]time.Time
	// Durations holds the complement phase (Times[1]-Times[0]) and the
	// remainder of the diel period, in seconds.
	Durations [2]int64
	// Complete is false when fewer than two transitions were found.
	Complete bool
}

// DetectPhase scans a single subject's rows. Indices are -1 for transitions
// that were not found.
func DetectPhase(rows []Observation) (PhaseWindow, error) {
	w := PhaseWindow{Indices: [2]int{-1, -1}}
	if len(rows) == 0 {
		return w, nil
	}
	for i, row := range rows {
		if row.Phase != Dark && row.Phase != Light {
			return w, &PhaseValueError{Subject: row.Subject, Index: i, Value: row.Phase}
		}
	}

	w.Initial = rows[0].Phase
	for i := 1; i < len(rows); i++ {
		if rows[i].Phase != w.Initial {
			w.Indices[0], w.Times[0] = i, rows[i].Time
			break
		}
	}
	if w.Indices[0] < 0 {
		return w, nil
	}
	for i := w.Indices[0] + 1; i < len(rows); i++ {
		if rows[i].Phase == w.Initial {
			w.Indices[1], w.Times[1] = i, rows[i].Time
			break
		}
	}
	if w.Indices[1] < 0 {
		return w, nil
	}

	first := FrequencySeconds(w.Times[1].Sub(w.Times[0]))
	if first >= DielPeriod {
		return w, fmt.Errorf("%w: phase lasting %ds does not fit in a %ds day", ErrValue, first, DielPeriod)
	}
	w.Durations = [2]int64{first, DielPeriod - first}
	w.Complete = true
	return w, nil
}

// resolvePhase detects the phase window on the first subject and recomputes the
// allowed aggregation set.
func (d *Dataset) resolvePhase() error {
	w, err := DetectPhase(d.subjects[d.order[0]])
	if err != nil {
		return err
	}
	if !w.Complete {
		d.opts.sink.Warn("No complete light/dark cycle found, aggregation is restricted to divisors of the %ds day", DielPeriod)
		w.Durations = [2]int64{DielPeriod, DielPeriod}
	} else {
		d.opts.sink.Debug("Phase changes at rows %d and %d (%s, %s), durations %ds/%ds",
			w.Indices[0], w.Indices[1], w.Times[0].Format(TimeLayout), w.Times[1].Format(TimeLayout),
			w.Durations[0], w.Durations[1])
	}
	for _, s := range d.order[1:] {
		other, err := DetectPhase(d.subjects[s])
		if err == nil && !sameCycle(w, other) {
			d.opts.sink.Warn("Subject %s changes light phase at different times than subject %s, using the cycle of %s",
				s, d.order[0], d.order[0])
		}
	}
	d.phase = w
	d.allowed = AllowedFrequencies(w.Durations[0], w.Durations[1], d.freq)
	return nil
}

// sameCycle reports whether two complete windows switch into each phase at the
// same clock time. Incomplete windows carry no cycle to compare against.
func sameCycle(a, b PhaseWindow) bool {
	if !a.Complete || !b.Complete {
		return true
	}
	return switchClock(a) == switchClock(b)
}

// switchClock returns the second of the day at which the window switches
// to dark and to light.
func switchClock(w PhaseWindow) [2]int64 {
	var out [2]int64
	for k, t := range w.Times {
		into := w.Initial
		if k == 0 {
			into = Dark + Light - w.Initial
		}
		sec := int64(t.Hour()*3600 + t.Minute()*60 + t.Second())
		if into == Dark {
			out[0] = sec
		} else {
			out[1] = sec
		}
	}
	return out
}

// AllowedFrequencies returns every common divisor of both phase durations that
// is a multiple of base, ascending. base itself is always included.
func AllowedFrequencies(first, second, base int64) []int64 {
	if base <= 0 {
		return nil
	}
	limit := first
	if second < limit {
		limit = second
	}
	var out []int64
	for k := int64(1); k <= limit; k++ {
		if first%k == 0 && second%k == 0 && k%base == 0 {
			out = append(out, k)
		}
	}
	if len(out) == 0 || out[0] != base {
		out = append([]int64{base}, out...)
	}
	return out
}
