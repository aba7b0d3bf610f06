// Package history records run results in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/core/runner"
	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	file        TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS steps (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	scenario    TEXT NOT NULL,
	step        TEXT NOT NULL,
	status      INTEGER,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS steps_run ON steps(run_id);
`

// Run is one recorded run of a file.
type Run struct {
	ID        string
	File      string
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
}

// Step is one recorded step of a run.
type Step struct {
	Scenario string
	Step     string
	Status   int
	Duration time.Duration
	Passed   bool
	Skipped  bool
	Error    string
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates a history database. conn is a file path,
// optionally prefixed with sqlite:// or sqlite:.
func Open(ctx context.Context, conn string) (*Store, error) {
	dsn, err := parseConnectionString(conn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a run result and returns the new run ID.
func (s *Store) Record(ctx context.Context, result *runner.RunResult) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	started := s.now().Add(-result.Duration).UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, file, started_at, duration_ms, passed, failed, skipped) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, result.File, started, result.Duration.Milliseconds(), result.Passed, result.Failed, result.Skipped,
	); err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO steps (run_id, scenario, step, status, duration_ms, passed, skipped, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, scn := range result.Scenarios {
		for _, step := range scn.Steps {
			var status sql.NullInt64
			if step.Response != nil {
				status = sql.NullInt64{Int64: int64(step.Response.StatusCode), Valid: true}
			}
			var errText sql.NullString
			if step.Error != nil {
				errText = sql.NullString{String: step.Error.Error(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, id, scn.Name, step.Name, status,
				step.Duration.Milliseconds(), step.Passed, step.Skipped, errText); err != nil {
				return "", fmt.Errorf("recording step %s/%s: %w", scn.Name, step.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Recent returns the last n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file, started_at, duration_ms, passed, failed, skipped FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var durationMs int64
		if err := rows.Scan(&run.ID, &run.File, &run.StartedAt, &durationMs, &run.Passed, &run.Failed, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Steps returns the recorded steps of a run in insertion order.
func (s *Store) Steps(ctx context.Context, runID string) ([]*Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scenario, step, status, duration_ms, passed, skipped, error FROM steps WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step := &Step{}
		var status sql.NullInt64
		var errText sql.NullString
		var durationMs int64
		if err := rows.Scan(&step.Scenario, &step.Step, &status, &durationMs, &step.Passed, &step.Skipped, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		step.Status = int(status.Int64)
		step.Duration = time.Duration(durationMs) * time.Millisecond
		step.Error = errText.String
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// parseConnectionString accepts:
// - sqlite://path/to/history.db
// - sqlite:./history.db
// - path/to/history.db
func parseConnectionString(conn string) (string, error) {
	conn = strings.TrimSpace(conn)
	switch {
	case conn == "":
		return "", fmt.Errorf("empty history connection string")
	case strings.HasPrefix(conn, "sqlite://"):
		return strings.TrimPrefix(conn, "sqlite://"), nil
	case strings.HasPrefix(conn, "sqlite:"):
		return strings.TrimPrefix(conn, "sqlite:"), nil
	case strings.Contains(conn, "://"):
		return "", fmt.Errorf("unsupported database scheme: %s", conn[:strings.Index(conn, "://")])
	}
	return conn, nil
}
