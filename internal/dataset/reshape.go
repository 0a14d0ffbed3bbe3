package dataset

import (
	"fmt"
	"time"
)

// EqualizeObservations truncates every subject to the smallest observation
// count. By default the tail is trimmed; with trimFromEnd false the head is.
func (d *Dataset) EqualizeObservations(trimFromEnd bool) (*Dataset, error) {
	least := -1
	for _, s := range d.order {
		if n := len(d.subjects[s]); least < 0 || n < least {
			least = n
		}
	}

	var rows []Observation
	for _, s := range d.order {
		part := d.subjects[s]
		if trimFromEnd {
			part = part[:least]
		} else {
			part = part[len(part)-least:]
		}
		for _, o := range part {
			rows = append(rows, o.clone())
		}
	}
	if len(rows) < len(d.rows) {
		d.opts.sink.Debug("Equalized subjects to %d observations", least)
	}
	return d.derive(rows, d.freq)
}

// RemoveIncompleteCycle drops each subject's leading rows up to its first
// phase transition, then equalizes observations from the end.
func (d *Dataset) RemoveIncompleteCycle() (*Dataset, error) {
	var rows []Observation
	for _, s := range d.order {
		part := d.subjects[s]
		cut := 0
		for i := 1; i < len(part); i++ {
			if part[i].Phase != part[0].Phase {
				cut = i
				break
			}
		}
		if cut > 0 {
			d.opts.sink.Debug("Dropping %d rows of incomplete first phase for subject %s", cut, s)
		}
		for _, o := range part[cut:] {
			rows = append(rows, o.clone())
		}
	}

	trimmed, err := d.derive(rows, d.freq)
	if err != nil {
		return nil, err
	}
	return trimmed.EqualizeObservations(true)
}

// SetDatetimeStart rewrites every subject's timeline to begin at date (YYYY-MM-DD)
// and clock (HH:MM:SS), keeping the sampling period. Original absolute
// timestamps are discarded. An irregular dataset is regularized first.
func (d *Dataset) SetDatetimeStart(date, clock string) (*Dataset, error) {
	start, err := time.Parse(TimeLayout, date+" "+clock)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start %q %q: %v", ErrValue, date, clock, err)
	}

	src := d
	if !d.regular {
		if src, err = d.Regularize(); err != nil {
			return nil, err
		}
	}

	step := seconds(src.freq)
	rows := src.cloneRows()
	for i := range rows {
		rows[i].Time = start.Add(time.Duration(rows[i].Interval) * step)
	}
	return src.derive(rows, src.freq)
}

// RenameSubjects renames subjects through a total mapping. A subject without
// an entry fails with ErrSubjectID.
func (d *Dataset) RenameSubjects(mapping map[string]string) (*Dataset, error) {
	for _, s := range d.order {
		if _, ok := mapping[s]; !ok {
			return nil, fmt.Errorf("%w: no new name for subject %s", ErrSubjectID, s)
		}
	}
	return d.RenameSubjectsFunc(func(s string) string { return mapping[s] })
}

// RenameSubjectsFunc renames every subject with fn. Distinct subjects must keep
// distinct names.
func (d *Dataset) RenameSubjectsFunc(fn func(string) string) (*Dataset, error) {
	names := make(map[string]string, len(d.order))
	taken := make(map[string]string, len(d.order))
	for _, s := range d.order {
		n := fn(s)
		if n == "" {
			return nil, fmt.Errorf("%w: subject %s renamed to an empty id", ErrSubjectID, s)
		}
		if prev, ok := taken[n]; ok {
			return nil, fmt.Errorf("%w: subjects %s and %s both renamed to %s", ErrSubjectID, prev, s, n)
		}
		taken[n] = s
		names[s] = n
	}

	rows := d.cloneRows()
	for i := range rows {
		rows[i].Subject = names[rows[i].Subject]
	}
	return d.derive(rows, d.freq)
}
