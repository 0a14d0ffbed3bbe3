package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Join appends recordings of the same experiment one after the other. All
// datasets must share one frequency and no subject may have overlapping time
// ranges; gaps between recordings are filled by regularization. The result
// carries a freshly computed phase window and allowed aggregation set.
func Join(sets ...*Dataset) (*Dataset, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: nothing to join", ErrValue)
	}
	if err := sameFrequency(sets); err != nil {
		return nil, err
	}

	if err := checkOverlap(sets); err != nil {
		return nil, err
	}

	ordered := append([]*Dataset(nil), sets...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].start.Before(ordered[j].start) })

	joined, err := combine(ordered)
	if err != nil {
		return nil, err
	}
	return joined.Regularize()
}

type segment struct {
	first, last time.Time
}

// checkOverlap orders every subject's recordings by their own first
// timestamp, so datasets starting in a different order than one of their
// subjects are compared correctly.
func checkOverlap(sets []*Dataset) error {
	segments := make(map[string][]segment)
	var subjects []string
	for _, d := range sets {
		for _, s := range d.order {
			rows := d.subjects[s]
			if len(rows) == 0 {
				continue
			}
			if _, seen := segments[s]; !seen {
				subjects = append(subjects, s)
			}
			segments[s] = append(segments[s], segment{first: rows[0].Time, last: rows[len(rows)-1].Time})
		}
	}

	for _, s := range subjects {
		segs := segments[s]
		sort.SliceStable(segs, func(i, j int) bool { return segs[i].first.Before(segs[j].first) })
		for i := 1; i < len(segs); i++ {
			if !segs[i-1].last.Before(segs[i].first) {
				return &OverlapError{Subject: s, PrevEnd: segs[i-1].last, NextStart: segs[i].first}
			}
		}
	}
	return nil
}

// Merge places datasets with disjoint subjects side by side in one dataset.
func Merge(sets ...*Dataset) (*Dataset, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", ErrValue)
	}
	if err := sameFrequency(sets); err != nil {
		return nil, err
	}
	owner := make(map[string]string)
	for _, d := range sets {
		for _, s := range d.order {
			if prev, ok := owner[s]; ok {
				return nil, fmt.Errorf("%w: subject %s present in datasets %s and %s", ErrSubjectID, s, prev, d.id)
			}
			owner[s] = d.id
		}
	}
	return combine(sets)
}

func sameFrequency(sets []*Dataset) error {
	for _, d := range sets[1:] {
		if d.freq != sets[0].freq {
			freqs := make([]int64, len(sets))
			for i, s := range sets {
				freqs[i] = s.freq
			}
			return &FrequencyMismatchError{Frequencies: freqs}
		}
	}
	return nil
}

func combine(sets []*Dataset) (*Dataset, error) {
	tables := make([]*Table, len(sets))
	for i, d := range sets {
		tables[i] = d.Table()
	}
	params, index := unionParameters(tables)

	var rows []Observation
	for _, t := range tables {
		for _, row := range t.Rows {
			rows = append(rows, remap(row, t.Parameters, index, len(params)))
		}
	}
	return build(rows, params, true, sets[0].freq, sets[0].opts)
}
