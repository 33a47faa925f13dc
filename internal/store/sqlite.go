package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	summary     TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_targets (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	failure_kind TEXT NOT NULL DEFAULT '',
	last_error   TEXT NOT NULL DEFAULT '',
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_targets_run_id ON run_targets(run_id);
CREATE INDEX IF NOT EXISTS idx_run_targets_status ON run_targets(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.PipelineRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		run.ID, run.StartedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.PipelineRun) error {
	summary := run.Summary()
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, finished_at = ? WHERE id = ?`,
		string(summaryJSON), run.FinishedAt.UTC(), run.ID,
	)
	return eris.Wrap(err, "sqlite: finish run")
}

func (s *SQLiteStore) UpsertTarget(ctx context.Context, runID string, target *model.Target) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_targets (id, run_id, url, status, failure_kind, last_error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   failure_kind = excluded.failure_kind,
		   last_error = excluded.last_error,
		   updated_at = excluded.updated_at`,
		target.ID, runID, target.URL, string(target.Status),
		string(target.FailureKind), target.LastErr, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: upsert target")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, []TargetRecord, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, summary, started_at, finished_at FROM runs WHERE id = ?`, runID))
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil, eris.Errorf("sqlite: run %s not found", runID)
		}
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, url, status, failure_kind, last_error, updated_at
		 FROM run_targets WHERE run_id = ? ORDER BY updated_at`, runID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: query targets")
	}
	defer rows.Close()

	var targets []TargetRecord
	for rows.Next() {
		var t TargetRecord
		var status, kind string
		if err := rows.Scan(&t.ID, &t.RunID, &t.URL, &status, &kind, &t.LastErr, &t.UpdatedAt); err != nil {
			return nil, nil, eris.Wrap(err, "sqlite: scan target")
		}
		t.Status = model.TargetStatus(status)
		t.FailureKind = model.FailureKind(kind)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: iterate targets")
	}

	return run, targets, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, summary, started_at, finished_at FROM runs
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}

	return runs, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanRun(row rowScanner) (*RunRecord, error) {
	var run RunRecord
	var summaryJSON sql.NullString
	var finishedAt sql.NullTime

	if err := row.Scan(&run.ID, &summaryJSON, &run.StartedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: run not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary model.RunSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
		run.Summary = &summary
	}

	return &run, nil
}
