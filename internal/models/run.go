// Package models defines the records kept about conversion runs.
// A Run is one invocation of an action (convert, join or match); every input
// file it touches gets a FileResult. Both validate themselves before they are
// stored in the run ledger.
package models

import (
	"errors"
	"time"
)

// Actions.
const (
	ActionConvert = "convert"
	ActionJoin    = "join"
	ActionMatch   = "match"
)

// Run states.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run represents one invocation of an action.
type Run struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	System     string    `json:"system,omitempty"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Frequency  int64     `json:"frequency"` // Output frequency in seconds, 0 until known
	Status     string    `json:"status"`
	Outputs    []string  `json:"outputs,omitempty"` // Files written by the run
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Validate checks that all run fields are valid.
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	switch r.Action {
	case ActionConvert, ActionJoin, ActionMatch:
	default:
		return errors.New("action must be 'convert', 'join' or 'match'")
	}
	if r.Input == "" {
		return errors.New("input must not be empty")
	}
	if r.Frequency < 0 {
		return errors.New("frequency must not be negative")
	}
	switch r.Status {
	case RunRunning, RunSucceeded, RunFailed:
	default:
		return errors.New("status must be 'running', 'succeeded' or 'failed'")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started at must be set")
	}
	if !r.FinishedAt.IsZero() && r.FinishedAt.Before(r.StartedAt) {
		return errors.New("finished at must be >= started at")
	}
	if r.Status == RunFailed && r.Error == "" {
		return errors.New("failed runs must carry an error")
	}
	return nil
}

// Duration is the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
