package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the task service database at
// path and ensures the tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := validateSQLiteFilesystem(path); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: writes are serialized and an in-memory database
	// stays the same database.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables and indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
  task_id         TEXT PRIMARY KEY,
  task_group_id   TEXT NOT NULL,
  scheduler_id    TEXT NOT NULL,
  worker_type     TEXT NOT NULL,
  name            TEXT NOT NULL,
  definition      JSON NOT NULL,
  state           TEXT NOT NULL,
  created_at      TEXT NOT NULL,
  deadline        TEXT NOT NULL,
  expires         TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS index_entries (
  namespace   TEXT PRIMARY KEY,
  task_id     TEXT NOT NULL REFERENCES tasks(task_id),
  rank        INTEGER NOT NULL DEFAULT 0,
  expires     TEXT NOT NULL,
  updated_at  TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS decision_runs (
  task_id      TEXT PRIMARY KEY REFERENCES tasks(task_id),
  task_for     TEXT NOT NULL,
  event        TEXT NOT NULL,
  delivery_id  TEXT,
  git_url      TEXT NOT NULL,
  git_ref      TEXT NOT NULL,
  git_sha      TEXT NOT NULL,
  created_at   TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS tasks_task_group_id_idx ON tasks(task_group_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS index_entries_task_id_idx ON index_entries(task_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS decision_runs_delivery_id_idx ON decision_runs(delivery_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
