package models

import (
	"errors"
	"time"
)

// File outcomes.
const (
	FileParsed = "parsed"
	FileFailed = "failed"
)

// FileResult is the outcome of parsing one input file.
type FileResult struct {
	RunID        string    `json:"run_id"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Status       string    `json:"status"`
	Subjects     int       `json:"subjects"`
	Observations int       `json:"observations"`
	Frequency    int64     `json:"frequency"`
	Regular      bool      `json:"regular"`
	Error        string    `json:"error,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Validate checks that all file result fields are valid
func (f *FileResult) Validate() error {
	if f.RunID == "" {
		return errors.New("run ID must not be empty")
	}
	if f.Path == "" {
		return errors.New("path must not be empty")
	}
	if f.Size < 0 {
		return errors.New("size must not be negative")
	}
	switch f.Status {
	case FileParsed:
		if f.Subjects < 1 || f.Observations < 1 {
			return errors.New("parsed files must have subjects and observations")
		}
	case FileFailed:
		if f.Error == "" {
			return errors.New("failed files must carry an error")
		}
	default:
		return errors.New("status must be 'parsed' or 'failed'")
	}
	if f.ProcessedAt.After(time.Now()) {
		return errors.New("processed at must not be in the future")
	}
	return nil
}

// Failed reports whether the file could not be used.
func (f *FileResult) Failed() bool {
	return f.Status == FileFailed
}
