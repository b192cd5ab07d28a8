// Package ledger keeps a SQLite history of ingestion runs and their
// terminal batch outcomes.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"us-ingest/internal/writer"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	job            TEXT NOT NULL,
	source         TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	finished_at    TEXT,
	status         TEXT NOT NULL,
	points         INTEGER NOT NULL DEFAULT 0,
	batches        INTEGER NOT NULL DEFAULT 0,
	succeeded      INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	retries        INTEGER NOT NULL DEFAULT 0,
	points_written INTEGER NOT NULL DEFAULT 0,
	points_lost    INTEGER NOT NULL DEFAULT 0,
	dropped        INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS batches (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	batch       INTEGER NOT NULL,
	state       TEXT NOT NULL,
	points      INTEGER NOT NULL,
	attempts    INTEGER NOT NULL,
	retries     INTEGER NOT NULL,
	error       TEXT,
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (run_id, batch)
);
`

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Ledger is an open ledger database.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and creates the tables.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One connection serializes writers from concurrent batch workers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		slog.Warn("ledger: failed to set WAL mode", "error", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger tables: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start inserts a running run row and returns its recorder.
func (l *Ledger) Start(ctx context.Context, job, source string) (*Recorder, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, job, source, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, job, source, now(), StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Recorder{ledger: l, RunID: id}, nil
}

// Run is a row of the runs table.
type Run struct {
	ID        string
	Job       string
	Source    string
	Status    string
	StartedAt time.Time
	Summary   writer.Summary
}

// LastRun returns the most recently started run of job, or nil when there is none.
func (l *Ledger) LastRun(ctx context.Context, job string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, job, source, status, started_at, points, batches, succeeded, failed,
		       retries, points_written, points_lost, dropped
		FROM runs WHERE job = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, job)
	var r Run
	var started string
	s := &r.Summary
	err := row.Scan(&r.ID, &r.Job, &r.Source, &r.Status, &started, &s.Points, &s.Batches,
		&s.Succeeded, &s.Failed, &s.Retries, &s.PointsWritten, &s.PointsLost, &s.Dropped)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select last run: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	return &r, nil
}

// BatchRow is a row of the batches table.
type BatchRow struct {
	Batch    int
	State    string
	Points   int
	Attempts int
	Retries  int
	Error    string
}

// Batches lists the recorded batches of a run by batch id.
func (l *Ledger) Batches(ctx context.Context, runID string) ([]BatchRow, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT batch, state, points, attempts, retries, COALESCE(error, '')
		FROM batches WHERE run_id = ? ORDER BY batch`, runID)
	if err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRow
	for rows.Next() {
		var b BatchRow
		if err := rows.Scan(&b.Batch, &b.State, &b.Points, &b.Attempts, &b.Retries, &b.Error); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Recorder writes one run's batch outcomes. It implements writer.Listener;
// ledger errors are logged and kept, never passed back to the writer.
type Recorder struct {
	ledger *Ledger
	RunID  string

	mu  sync.Mutex
	err error
}

var _ writer.Listener = (*Recorder)(nil)

func (r *Recorder) OnSuccess(b *writer.Batch) {
	r.record(b, "")
}

func (r *Recorder) OnRetry(*writer.Batch, error, time.Duration) {}

func (r *Recorder) OnError(b *writer.Batch, err error) {
	r.record(b, err.Error())
}

func (r *Recorder) record(b *writer.Batch, reason string) {
	var errText any
	if reason != "" {
		errText = reason
	}
	_, err := r.ledger.db.Exec(`
		INSERT INTO batches (run_id, batch, state, points, attempts, retries, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, b.ID, b.State.String(), b.Len(), b.Attempts, b.Retries, errText, now())
	if err != nil {
		slog.Warn("ledger: failed to record batch", "run", r.RunID, "batch", b.ID, "error", err)
		r.setErr(err)
	}
}

// Finish closes the run row with the final summary.
func (r *Recorder) Finish(ctx context.Context, s writer.Summary) error {
	_, err := r.ledger.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, points = ?, batches = ?, succeeded = ?,
		       failed = ?, retries = ?, points_written = ?, points_lost = ?, dropped = ?
		WHERE id = ?`,
		now(), RunStatus(s), s.Points, s.Batches, s.Succeeded, s.Failed, s.Retries,
		s.PointsWritten, s.PointsLost, s.Dropped, r.RunID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.RunID, err)
	}
	return nil
}

// Abort marks the run failed, e.g. after a source or mapping error.
func (r *Recorder) Abort(ctx context.Context) error {
	_, err := r.ledger.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`, now(), StatusFailed, r.RunID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.RunID, err)
	}
	return nil
}

// Err returns the first error met while recording batches.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// RunStatus classifies a finished run.
func RunStatus(s writer.Summary) string {
	switch {
	case s.OK():
		return StatusSucceeded
	case s.PointsWritten > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
