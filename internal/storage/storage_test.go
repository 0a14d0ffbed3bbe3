package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/cageconvert/internal/models"
)

func newLedger(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, started time.Time) *models.Run {
	return &models.Run{
		ID:        id,
		Action:    models.ActionConvert,
		System:    "clams-oxymax",
		Input:     "./data",
		Output:    "./out",
		Status:    models.RunRunning,
		StartedAt: started,
	}
}

func TestStorage_StartAndGetRun(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

	if err := s.StartRun(ctx, testRun("run-1", started)); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != models.RunRunning || got.System != "clams-oxymax" {
		t.Errorf("unexpected run: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero", got.FinishedAt)
	}
}

func TestStorage_FinishRun(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	run := testRun("run-1", started)
	if err := s.StartRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	run.Status = models.RunSucceeded
	run.Frequency = 3600
	run.Outputs = []string{"out/2024-03-01_convert.csv", "out/cageconvert.log"}
	run.FinishedAt = started.Add(2 * time.Second)
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunSucceeded || got.Frequency != 3600 {
		t.Errorf("unexpected run: %+v", got)
	}
	if len(got.Outputs) != 2 || got.Outputs[0] != "out/2024-03-01_convert.csv" {
		t.Errorf("Outputs = %v", got.Outputs)
	}
	if got.Duration() != 2*time.Second {
		t.Errorf("Duration = %v", got.Duration())
	}
}

func TestStorage_FinishUnknownRun(t *testing.T) {
	s := newLedger(t)
	run := testRun("ghost", time.Now())
	run.Status = models.RunSucceeded
	run.FinishedAt = time.Now()
	if err := s.FinishRun(context.Background(), run); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun error = %v, want ErrNotFound", err)
	}
}

func TestStorage_GetMissingRun(t *testing.T) {
	s := newLedger(t)
	if _, err := s.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun error = %v, want ErrNotFound", err)
	}
}

func TestStorage_RejectsInvalidRecords(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()

	if err := s.StartRun(ctx, &models.Run{ID: "x"}); err == nil {
		t.Error("StartRun accepted an invalid run")
	}
	if err := s.RecordFile(ctx, &models.FileResult{Path: "a.csv"}); err == nil {
		t.Error("RecordFile accepted an invalid result")
	}
}

func TestStorage_RecordAndListFiles(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()
	now := time.Now().Add(-time.Minute)
	if err := s.StartRun(ctx, testRun("run-1", now)); err != nil {
		t.Fatal(err)
	}

	results := []models.FileResult{
		{RunID: "run-1", Path: "a.csv", Size: 100, Status: models.FileParsed,
			Subjects: 1, Observations: 1440, Frequency: 60, Regular: true, ProcessedAt: now},
		{RunID: "run-1", Path: "b.csv", Size: 5, Status: models.FileFailed,
			Error: "file format error", ProcessedAt: now},
	}
	for i := range results {
		if err := s.RecordFile(ctx, &results[i]); err != nil {
			t.Fatalf("RecordFile failed: %v", err)
		}
	}

	files, err := s.ListFiles(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Path != "a.csv" || !files[0].Regular || files[0].Observations != 1440 {
		t.Errorf("unexpected first file: %+v", files[0])
	}
	if !files[1].Failed() || files[1].Error != "file format error" {
		t.Errorf("unexpected second file: %+v", files[1])
	}

	other, err := s.ListFiles(ctx, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("expected no files for run-2, got %d", len(other))
	}
}

func TestStorage_RecentRuns(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		if err := s.StartRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r3" || runs[1].ID != "r2" {
		t.Errorf("RecentRuns = %+v", runs)
	}
}

func TestStorage_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "runs.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.StartRun(ctx, testRun("run-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(ctx, "run-1"); err != nil {
		t.Errorf("run did not survive reopen: %v", err)
	}
}
