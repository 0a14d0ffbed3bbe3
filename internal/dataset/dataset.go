// Package dataset is the time-series normalization engine.
//
// A Dataset owns a canonical per-subject observation table together with the
// facts derived from it: the sampling frequency, whether every subject is
// sampled on one regular period, the light/dark phase window and the set of
// aggregation frequencies that keep phase boundaries intact.
//
// All transformations (Regularize, Aggregate, EqualizeObservations,
// RemoveIncompleteCycle, SetDatetimeStart, RenameSubjects, Join, Merge) return
// a new Dataset and leave the receiver untouched.
package dataset

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Sink receives diagnostics from the engine. *logger.Logger satisfies it.
type Sink interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

type nopSink struct{}

func (nopSink) Debug(string, ...interface{}) {}
func (nopSink) Warn(string, ...interface{})  {}

// Loader turns a file path into a canonical table.
type Loader interface {
	Load(path string) (*Table, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (*Table, error)

// Load calls f(path).
func (f LoaderFunc) Load(path string) (*Table, error) { return f(path) }

type options struct {
	sink            Sink
	loader          Loader
	darkStart       Clock
	darkEnd         Clock
	darkSet         bool
	forceRegularize bool
}

// Option configures dataset construction.
type Option func(*options)

// WithSink routes warnings and debug output to s.
func WithSink(s Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithLoader sets the parser used when New receives a file path.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithDarkPeriod supplies the clock times used to synthesize a missing light column.
func WithDarkPeriod(start, end Clock) Option {
	return func(o *options) {
		o.darkStart, o.darkEnd, o.darkSet = start, end, true
	}
}

// WithForceRegularize controls whether irregular input is accepted (default true).
// When false, an irregular dataset fails construction with ErrConfig.
func WithForceRegularize(force bool) Option {
	return func(o *options) { o.forceRegularize = force }
}

func defaultOptions() options {
	return options{sink: nopSink{}, forceRegularize: true}
}

// Dataset is the aggregate root of the engine.
type Dataset struct {
	id         string
	parameters []string
	rows       []Observation
	subjects   map[string][]Observation
	order      []string

	freq        int64
	subjectFreq map[string]int64
	intervals   map[string][]IntervalCount
	regular     bool

	start time.Time
	end   time.Time

	phase   PhaseWindow
	allowed []int64

	opts options
}

// New builds a dataset from a file path (parsed with the configured Loader) or
// from a *Table / Table. Any other source fails with ErrUnsupportedSource.
func New(source interface{}, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var table *Table
	switch src := source.(type) {
	case string:
		if o.loader == nil {
			return nil, fmt.Errorf("%w: no loader configured for path %s", ErrConfig, src)
		}
		t, err := o.loader.Load(src)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", src, err)
		}
		table = t
	case *Table:
		if src == nil {
			return nil, fmt.Errorf("%w: nil table", ErrUnsupportedSource)
		}
		table = src.Clone()
	case Table:
		table = src.Clone()
	default:
		return nil, fmt.Errorf("%w: %T, only a file path or a table is accepted", ErrUnsupportedSource, source)
	}

	return build(table.Rows, table.Parameters, table.HasPhase, 0, o)
}

// build owns rows from here on. hint is the frequency used for subjects with a
// single observation (0 when unknown).
func build(rows []Observation, params []string, hasPhase bool, hint int64, o options) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: dataset has no observations", ErrValue)
	}
	t := Table{Parameters: params, HasPhase: hasPhase, Rows: rows}
	if err := t.validate(); err != nil {
		return nil, err
	}

	d := &Dataset{
		id:         uuid.NewString(),
		parameters: append([]string(nil), params...),
		opts:       o,
	}
	if err := d.partition(rows); err != nil {
		return nil, err
	}

	if hasPhase {
		if err := d.validatePhase(); err != nil {
			return nil, err
		}
	} else {
		if !o.darkSet {
			return nil, fmt.Errorf("%w: data has no light column and no dark start/end times were supplied", ErrConfig)
		}
		o.sink.Debug("Synthesizing light column from dark period %s-%s", o.darkStart, o.darkEnd)
		synthesizePhase(d.rows, o.darkStart, o.darkEnd)
	}

	if err := d.analyzeFrequency(hint); err != nil {
		return nil, err
	}
	if !d.regular && !o.forceRegularize {
		return nil, fmt.Errorf("%w: dataset is irregular (%s) and forced regularization is disabled", ErrConfig, d.describeIntervals())
	}

	if err := d.resolvePhase(); err != nil {
		return nil, err
	}
	return d, nil
}

// partition sorts rows by subject (first-appearance order) then time, assigns
// contiguous intervals and slices the per-subject partition out of d.rows.
func (d *Dataset) partition(rows []Observation) error {
	rank := make(map[string]int)
	for _, r := range rows {
		if _, ok := rank[r.Subject]; !ok {
			rank[r.Subject] = len(rank)
			d.order = append(d.order, r.Subject)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rank[rows[i].Subject] != rank[rows[j].Subject] {
			return rank[rows[i].Subject] < rank[rows[j].Subject]
		}
		return rows[i].Time.Before(rows[j].Time)
	})

	d.rows = rows
	d.subjects = make(map[string][]Observation, len(d.order))
	lo := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && rows[i].Subject == rows[lo].Subject {
			continue
		}
		part := rows[lo:i:i]
		for k := range part {
			part[k].Interval = k
			if k > 0 && !part[k].Time.After(part[k-1].Time) {
				return fmt.Errorf("%w: timestamps of subject %s are not strictly increasing at %s",
					ErrValue, part[k].Subject, part[k].Time.Format(TimeLayout))
			}
		}
		d.subjects[rows[lo].Subject] = part
		lo = i
	}

	first, last := rows[0].Time, rows[0].Time
	for _, part := range d.subjects {
		if part[0].Time.Before(first) {
			first = part[0].Time
		}
		if part[len(part)-1].Time.After(last) {
			last = part[len(part)-1].Time
		}
	}
	d.start, _ = RoundMinutes(first, RoundUp)
	d.end, _ = RoundMinutes(last, RoundUp)
	return nil
}

func (d *Dataset) validatePhase() error {
	for _, s := range d.order {
		for i, row := range d.subjects[s] {
			if row.Phase != Dark && row.Phase != Light {
				return &PhaseValueError{Subject: s, Index: i, Value: row.Phase}
			}
		}
	}
	return nil
}

// derive builds a sibling dataset that inherits the receiver's options.
func (d *Dataset) derive(rows []Observation, hint int64) (*Dataset, error) {
	return build(rows, d.parameters, true, hint, d.opts)
}

// ID is a random identifier assigned at construction.
func (d *Dataset) ID() string { return d.id }

// Frequency is the base sampling period in seconds.
func (d *Dataset) Frequency() int64 { return d.freq }

// SubjectFrequency is the dominant sampling period of one subject.
func (d *Dataset) SubjectFrequency(subject string) int64 { return d.subjectFreq[subject] }

// Regular reports whether every subject has exactly one observed interval.
func (d *Dataset) Regular() bool { return d.regular }

// Intervals returns the observed inter-sample intervals of a subject, most frequent first.
func (d *Dataset) Intervals(subject string) []IntervalCount {
	return append([]IntervalCount(nil), d.intervals[subject]...)
}

// Start is the earliest timestamp across subjects, rounded up to a whole minute.
func (d *Dataset) Start() time.Time { return d.start }

// End is the latest timestamp across subjects, rounded up to a whole minute.
func (d *Dataset) End() time.Time { return d.end }

// Phase returns the detected phase window.
func (d *Dataset) Phase() PhaseWindow { return d.phase }

// AllowedFrequencies returns the aggregation frequencies that preserve phase boundaries.
func (d *Dataset) AllowedFrequencies() []int64 { return append([]int64(nil), d.allowed...) }

// Subjects lists subject ids in table order.
func (d *Dataset) Subjects() []string { return append([]string(nil), d.order...) }

// Parameters lists the parameter columns.
func (d *Dataset) Parameters() []string { return append([]string(nil), d.parameters...) }

// Len is the total number of observations.
func (d *Dataset) Len() int { return len(d.rows) }

// Count is the number of observations of one subject.
func (d *Dataset) Count(subject string) int { return len(d.subjects[subject]) }

// Observations returns a copy of one subject's rows.
func (d *Dataset) Observations(subject string) []Observation {
	part := d.subjects[subject]
	out := make([]Observation, len(part))
	for i, row := range part {
		out[i] = row.clone()
	}
	return out
}

// Table returns a deep copy of the observation table.
func (d *Dataset) Table() *Table {
	t := &Table{Parameters: d.Parameters(), HasPhase: true, Rows: make([]Observation, len(d.rows))}
	for i, row := range d.rows {
		t.Rows[i] = row.clone()
	}
	return t
}

func (d *Dataset) cloneRows() []Observation {
	out := make([]Observation, len(d.rows))
	for i, row := range d.rows {
		out[i] = row.clone()
	}
	return out
}
