package models

import (
	"testing"
	"time"
)

func TestRunValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		run     Run
		wantErr bool
	}{
		{
			name: "valid running run",
			run: Run{
				ID:        "run-1",
				Action:    ActionConvert,
				Input:     "./data",
				Status:    RunRunning,
				StartedAt: now,
			},
			wantErr: false,
		},
		{
			name: "valid finished run",
			run: Run{
				ID:         "run-1",
				Action:     ActionMatch,
				Input:      "./data",
				Frequency:  3600,
				Status:     RunSucceeded,
				StartedAt:  now.Add(-time.Minute),
				FinishedAt: now,
			},
			wantErr: false,
		},
		{
			name:    "empty ID",
			run:     Run{Action: ActionJoin, Input: "x", Status: RunRunning, StartedAt: now},
			wantErr: true,
		},
		{
			name:    "unknown action",
			run:     Run{ID: "r", Action: "split", Input: "x", Status: RunRunning, StartedAt: now},
			wantErr: true,
		},
		{
			name:    "negative frequency",
			run:     Run{ID: "r", Action: ActionJoin, Input: "x", Frequency: -60, Status: RunRunning, StartedAt: now},
			wantErr: true,
		},
		{
			name: "finished before start",
			run: Run{ID: "r", Action: ActionJoin, Input: "x", Status: RunSucceeded,
				StartedAt: now, FinishedAt: now.Add(-time.Second)},
			wantErr: true,
		},
		{
			name:    "failed without error",
			run:     Run{ID: "r", Action: ActionJoin, Input: "x", Status: RunFailed, StartedAt: now},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Run.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	r := Run{StartedAt: start}
	if r.Duration() != 0 {
		t.Errorf("unfinished run duration = %v", r.Duration())
	}
	r.FinishedAt = start.Add(90 * time.Second)
	if r.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v", r.Duration())
	}
}

func TestFileResultValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		result  FileResult
		wantErr bool
	}{
		{
			name: "parsed file",
			result: FileResult{RunID: "r", Path: "a.csv", Size: 10, Status: FileParsed,
				Subjects: 1, Observations: 10, Frequency: 60, Regular: true, ProcessedAt: now},
			wantErr: false,
		},
		{
			name:    "failed file",
			result:  FileResult{RunID: "r", Path: "a.csv", Status: FileFailed, Error: "bad header", ProcessedAt: now},
			wantErr: false,
		},
		{
			name:    "missing run",
			result:  FileResult{Path: "a.csv", Status: FileFailed, Error: "x", ProcessedAt: now},
			wantErr: true,
		},
		{
			name:    "parsed without observations",
			result:  FileResult{RunID: "r", Path: "a.csv", Status: FileParsed, Subjects: 1, ProcessedAt: now},
			wantErr: true,
		},
		{
			name:    "failed without error",
			result:  FileResult{RunID: "r", Path: "a.csv", Status: FileFailed, ProcessedAt: now},
			wantErr: true,
		},
		{
			name:    "unknown status",
			result:  FileResult{RunID: "r", Path: "a.csv", Status: "skipped", ProcessedAt: now},
			wantErr: true,
		},
		{
			name: "processed in the future",
			result: FileResult{RunID: "r", Path: "a.csv", Status: FileFailed, Error: "x",
				ProcessedAt: now.Add(time.Hour)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("FileResult.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.result.Status == FileFailed && !tt.result.Failed() {
				t.Error("Failed() = false for a failed file")
			}
		})
	}
}
