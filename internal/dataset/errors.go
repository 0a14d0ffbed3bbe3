package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can branch with errors.Is.
var (
	// ErrFileFormat means required structural markers are missing from a source file.
	ErrFileFormat = errors.New("file format error")
	// ErrSubjectID means a subject identifier could not be extracted or resolved.
	ErrSubjectID = errors.New("subject id error")
	// ErrHeaderNotUnique means column names collide and header repair is disabled.
	ErrHeaderNotUnique = errors.New("header not unique")
	// ErrAggregationFrequency means the requested frequency is outside the allowed set.
	ErrAggregationFrequency = errors.New("illegal aggregation frequency")
	// ErrValue is the generic domain error.
	ErrValue = errors.New("value error")
	// ErrConfig means the caller supplied an inconsistent configuration.
	ErrConfig = errors.New("configuration error")
	// ErrUnsupportedSource means New was given something other than a path or a table.
	ErrUnsupportedSource = errors.New("unsupported dataset source")
)

// FileFormatError reports a source file that lacks a required marker.
type FileFormatError struct {
	File   string
	Reason string
}

func (e *FileFormatError) Error() string {
	return fmt.Sprintf("file format error in %s: %s", e.File, e.Reason)
}

func (e *FileFormatError) Unwrap() error { return ErrFileFormat }

// AggregationFrequencyError reports a target frequency that would straddle a phase boundary.
type AggregationFrequencyError struct {
	Frequency int64
	Allowed   []int64
}

func (e *AggregationFrequencyError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, f := range e.Allowed {
		allowed[i] = fmt.Sprintf("%d", f)
	}
	return fmt.Sprintf("illegal aggregation frequency %ds: only divisors of both phase durations that are multiples of the base frequency preserve phase boundaries (allowed: %s)",
		e.Frequency, strings.Join(allowed, ", "))
}

func (e *AggregationFrequencyError) Unwrap() error { return ErrAggregationFrequency }

// PhaseValueError reports a phase column value outside {0,1}.
type PhaseValueError struct {
	Subject string
	Index   int
	Value   int
}

func (e *PhaseValueError) Error() string {
	return fmt.Sprintf("illegal phase value %d for subject %s at row %d: only 0 (dark) and 1 (light) are allowed",
		e.Value, e.Subject, e.Index)
}

func (e *PhaseValueError) Unwrap() error { return ErrValue }

// FrequencyMismatchError reports datasets or subjects sampled at different rates.
type FrequencyMismatchError struct {
	Frequencies []int64
}

func (e *FrequencyMismatchError) Error() string {
	return fmt.Sprintf("inconsistent frequency across subjects: %v seconds", e.Frequencies)
}

func (e *FrequencyMismatchError) Unwrap() error { return ErrValue }

// OverlapError reports two recordings of one subject whose time ranges intersect.
type OverlapError struct {
	Subject   string
	PrevEnd   time.Time
	NextStart time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping time ranges for subject %s: previous recording ends %s, next starts %s",
		e.Subject, e.PrevEnd.Format(TimeLayout), e.NextStart.Format(TimeLayout))
}

func (e *OverlapError) Unwrap() error { return ErrValue }
