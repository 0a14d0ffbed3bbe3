// Package storage keeps the run ledger: one row per action run and one row per
// input file the run touched. The ledger lives in a SQLite database so runs
// can be inspected after the fact; ":memory:" gives a throwaway ledger.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/cageconvert/internal/models"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	system      TEXT NOT NULL DEFAULT '',
	input       TEXT NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	frequency   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	outputs     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS files (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	path         TEXT NOT NULL,
	size         INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL,
	subjects     INTEGER NOT NULL DEFAULT 0,
	observations INTEGER NOT NULL DEFAULT 0,
	frequency    INTEGER NOT NULL DEFAULT 0,
	regular      INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	processed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
`

// Storage is the SQLite backed run ledger.
type Storage struct {
	db *sql.DB
}

// New opens (and creates when missing) the ledger at dbPath.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "cageconvert", "ledger.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One connection: SQLite serializes writers and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run.
func (s *Storage) StartRun(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, action, system, input, output, frequency, status, outputs, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Action, run.System, run.Input, run.Output, run.Frequency, run.Status,
		strings.Join(run.Outputs, "\n"), run.Error, formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final state of a run.
func (s *Storage) FinishRun(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, frequency = ?, outputs = ?, error = ?, finished_at = ? WHERE id = ?`,
		run.Status, run.Frequency, strings.Join(run.Outputs, "\n"), run.Error, formatTime(run.FinishedAt), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// RecordFile appends the outcome of one input file to its run.
func (s *Storage) RecordFile(ctx context.Context, result *models.FileResult) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid file result: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (run_id, path, size, status, subjects, observations, frequency, regular, error, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Path, result.Size, result.Status, result.Subjects, result.Observations,
		result.Frequency, result.Regular, result.Error, formatTime(result.ProcessedAt))
	if err != nil {
		return fmt.Errorf("failed to insert file result for %s: %w", result.Path, err)
	}
	return nil
}

const runColumns = `id, action, system, input, output, frequency, status, outputs, error, started_at, finished_at`

// GetRun retrieves a run by ID.
func (s *Storage) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Storage) RecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListFiles returns the file results of a run in insertion order.
func (s *Storage) ListFiles(ctx context.Context, runID string) ([]models.FileResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, path, size, status, subjects, observations, frequency, regular, error, processed_at
		 FROM files WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.FileResult
	for rows.Next() {
		var (
			f         models.FileResult
			processed string
		)
		if err := rows.Scan(&f.RunID, &f.Path, &f.Size, &f.Status, &f.Subjects, &f.Observations,
			&f.Frequency, &f.Regular, &f.Error, &processed); err != nil {
			return nil, fmt.Errorf("failed to read file result: %w", err)
		}
		f.ProcessedAt = parseTime(processed)
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run               models.Run
		outputs           string
		started, finished string
	)
	if err := row.Scan(&run.ID, &run.Action, &run.System, &run.Input, &run.Output, &run.Frequency,
		&run.Status, &outputs, &run.Error, &started, &finished); err != nil {
		return nil, err
	}
	if outputs != "" {
		run.Outputs = strings.Split(outputs, "\n")
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
