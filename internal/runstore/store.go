// Package runstore keeps a sqlite ledger of forecast runs with the groups
// that failed or were left pending in each, so a later run can retry only
// those groups.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/forecast"
)

// ErrNotFound is returned when a run id is unknown
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	backend TEXT NOT NULL,
	dataset TEXT NOT NULL,
	units INTEGER NOT NULL,
	completed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	pending INTEGER NOT NULL,
	cancelled BOOLEAN NOT NULL,
	params TEXT
);
CREATE TABLE IF NOT EXISTS run_failures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	channel TEXT NOT NULL,
	family TEXT NOT NULL,
	item_id TEXT NOT NULL,
	reason TEXT
);
CREATE INDEX IF NOT EXISTS run_failures_run_id ON run_failures(run_id);
CREATE TABLE IF NOT EXISTS run_pending (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	channel TEXT NOT NULL,
	family TEXT NOT NULL,
	item_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS run_pending_run_id ON run_pending(run_id);
`

// Run is one ledger entry
type Run struct {
	ID         string         `json:"id" yaml:"id"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Backend    string         `json:"backend" yaml:"backend"`
	Dataset    string         `json:"dataset" yaml:"dataset"`
	Units      int            `json:"units" yaml:"units"`
	Completed  int            `json:"completed" yaml:"completed"`
	Failed     int            `json:"failed" yaml:"failed"`
	Pending    int            `json:"pending" yaml:"pending"`
	Cancelled  bool           `json:"cancelled" yaml:"cancelled"`
	Params     dataset.Params `json:"params" yaml:"params"`
}

// NewRun builds a ledger entry from a drained batch
func NewRun(out *aggregate.Output, datasetPath string, params dataset.Params) Run {
	return Run{
		ID:         out.BatchID,
		StartedAt:  out.StartedAt,
		FinishedAt: time.Now(),
		Backend:    out.Backend,
		Dataset:    datasetPath,
		Units:      out.Total(),
		Completed:  out.Completed(),
		Failed:     len(out.Failures),
		Pending:    len(out.Pending),
		Cancelled:  out.Cancelled,
		Params:     params,
	}
}

// Store is a sqlite-backed run ledger. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating parent directories
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// sqlite allows one writer; a single connection also keeps :memory: shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a run, its failed groups and the groups a cancellation left
// pending in one transaction
func (s *Store) SaveRun(ctx context.Context, run Run, failures []aggregate.Failure, pending []forecast.GroupKey) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encode run params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, finished_at, backend, dataset, units, completed, failed, pending, cancelled, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Backend, run.Dataset,
		run.Units, run.Completed, run.Failed, run.Pending, run.Cancelled, string(params))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, f := range failures {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_failures (run_id, channel, family, item_id, reason) VALUES (?, ?, ?, ?, ?)`,
			run.ID, f.Key.Channel, f.Key.Family, f.Key.ItemID, f.Reason)
		if err != nil {
			return fmt.Errorf("insert failure for run %s: %w", run.ID, err)
		}
	}
	for _, k := range pending {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_pending (run_id, channel, family, item_id) VALUES (?, ?, ?, ?)`,
			run.ID, k.Channel, k.Family, k.ItemID)
		if err != nil {
			return fmt.Errorf("insert pending group for run %s: %w", run.ID, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, started_at, finished_at, backend, dataset, units, completed, failed, pending, cancelled, params`

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches one run
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// FailedGroups returns the failures recorded for a run in insertion order
func (s *Store) FailedGroups(ctx context.Context, runID string) ([]aggregate.Failure, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT channel, family, item_id, reason FROM run_failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []aggregate.Failure
	for rows.Next() {
		var f aggregate.Failure
		var reason sql.NullString
		if err := rows.Scan(&f.Key.Channel, &f.Key.Family, &f.Key.ItemID, &reason); err != nil {
			return nil, err
		}
		f.Reason = reason.String
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// FailedKeys returns the group keys that failed in a run
func (s *Store) FailedKeys(ctx context.Context, runID string) ([]forecast.GroupKey, error) {
	failures, err := s.FailedGroups(ctx, runID)
	if err != nil {
		return nil, err
	}
	keys := make([]forecast.GroupKey, len(failures))
	for i, f := range failures {
		keys[i] = f.Key
	}
	return keys, nil
}

// PendingKeys returns the groups a cancelled run never resolved, in batch order
func (s *Store) PendingKeys(ctx context.Context, runID string) ([]forecast.GroupKey, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT channel, family, item_id FROM run_pending WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []forecast.GroupKey
	for rows.Next() {
		var k forecast.GroupKey
		if err := rows.Scan(&k.Channel, &k.Family, &k.ItemID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RetryKeys returns the failed groups of a run followed by its pending ones
func (s *Store) RetryKeys(ctx context.Context, runID string) ([]forecast.GroupKey, error) {
	keys, err := s.FailedKeys(ctx, runID)
	if err != nil {
		return nil, err
	}
	pending, err := s.PendingKeys(ctx, runID)
	if err != nil {
		return nil, err
	}
	return append(keys, pending...), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var params sql.NullString
	err := sc.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Backend, &run.Dataset,
		&run.Units, &run.Completed, &run.Failed, &run.Pending, &run.Cancelled, &params)
	if err != nil {
		return Run{}, err
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &run.Params); err != nil {
			return Run{}, fmt.Errorf("decode params of run %s: %w", run.ID, err)
		}
	}
	return run, nil
}
