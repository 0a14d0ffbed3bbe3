package dataset

import (
	"math"
	"time"
)

// Regularize resamples every subject onto the grid start, start+freq, ..., end
// by linear interpolation. Before a subject's first and after its last known
// sample the nearest value is repeated, so short recordings are extended, not
// truncated. The phase column is carried as a step function. A regular dataset
// is returned unchanged.
func (d *Dataset) Regularize() (*Dataset, error) {
	if d.regular {
		return d, nil
	}

	grid := d.grid()
	d.opts.sink.Debug("Regularizing %d subjects onto %d points every %ds from %s",
		len(d.order), len(grid), d.freq, d.start.Format(TimeLayout))

	rows := make([]Observation, 0, len(grid)*len(d.order))
	for _, s := range d.order {
		rows = append(rows, resample(d.subjects[s], grid, len(d.parameters))...)
	}
	return d.derive(rows, d.freq)
}

func (d *Dataset) grid() []time.Time {
	step := seconds(d.freq)
	var grid []time.Time
	for t := d.start; !t.After(d.end); t = t.Add(step) {
		grid = append(grid, t)
	}
	if len(grid) == 0 {
		grid = append(grid, d.start)
	}
	return grid
}

func resample(src []Observation, grid []time.Time, width int) []Observation {
	out := make([]Observation, len(grid))
	k := 0
	for i, t := range grid {
		k = stepPhase(src, t, k)
		out[i] = Observation{
			Subject:  src[0].Subject,
			Time:     t,
			Interval: i,
			Phase:    src[k].Phase,
			Values:   make([]float64, width),
		}
	}
	for p := 0; p < width; p++ {
		interpolate(src, p, grid, out)
	}
	return out
}

// stepPhase advances from index k to the last sample at or before t (the first
// sample when t precedes the recording). Grid times must be ascending.
func stepPhase(src []Observation, t time.Time, k int) int {
	for k+1 < len(src) && !src[k+1].Time.After(t) {
		k++
	}
	return k
}

// interpolate fills column p of out. NaN samples are treated as unknown.
func interpolate(src []Observation, p int, grid []time.Time, out []Observation) {
	type point struct {
		t time.Time
		v float64
	}
	known := make([]point, 0, len(src))
	for _, o := range src {
		if !math.IsNaN(o.Values[p]) {
			known = append(known, point{o.Time, o.Values[p]})
		}
	}

	j := 0
	for i, t := range grid {
		switch {
		case len(known) == 0:
			out[i].Values[p] = math.NaN()
		case !t.After(known[0].t):
			out[i].Values[p] = known[0].v
		case !t.Before(known[len(known)-1].t):
			out[i].Values[p] = known[len(known)-1].v
		default:
			for known[j+1].t.Before(t) {
				j++
			}
			a, b := known[j], known[j+1]
			frac := t.Sub(a.t).Seconds() / b.t.Sub(a.t).Seconds()
			out[i].Values[p] = a.v + (b.v-a.v)*frac
		}
	}
}
