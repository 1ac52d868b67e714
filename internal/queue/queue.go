package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

const (
	indexRoutePrefix = "index."

	// timestampFormat has a fixed width so that stored timestamps sort
	// chronologically as text.
	timestampFormat = "2006-01-02T15:04:05.000000000Z"
)

// Store is a Queue and Index kept in SQLite. It accepts the same task
// definitions as the hosted service and answers the same lookups, so a
// decision run can target it unchanged.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a Store on an initialized database (see storage.OpenSQLite).
func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateTask stores def under taskID and indexes it under each of its
// "index." routes. Creating the same task twice with an identical
// definition is a no-op; a different definition is ErrConflict.
func (s *Store) CreateTask(ctx context.Context, taskID string, def *taskcluster.TaskDefinition) (*taskcluster.TaskStatus, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	status, err := s.createTask(ctx, tx, taskID, def)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return status, nil
}

func (s *Store) createTask(ctx context.Context, tx *sql.Tx, taskID string, def *taskcluster.TaskDefinition) (*taskcluster.TaskStatus, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id is empty")
	}
	if def == nil {
		return nil, fmt.Errorf("task definition is nil")
	}
	body, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal task definition: %w", err)
	}

	var existing string
	var state State
	err = tx.QueryRowContext(ctx, `SELECT definition, state FROM tasks WHERE task_id = ?;`, taskID).Scan(&existing, &state)
	switch {
	case err == nil:
		if existing != string(body) {
			return nil, fmt.Errorf("task %s: %w", taskID, ErrConflict)
		}
		return taskStatus(taskID, def.TaskGroupID, state), nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("lookup task: %w", err)
	}

	now := s.now().UTC().Format(timestampFormat)
	_, err = tx.ExecContext(ctx, `
INSERT INTO tasks(task_id, task_group_id, scheduler_id, worker_type, name, definition, state, created_at, deadline, expires)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, taskID, def.TaskGroupID, def.SchedulerID, def.WorkerType, def.Metadata.Name, string(body), StatePending, now, def.Deadline, def.Expires)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	expires := indexExpiry(def)
	for _, route := range def.Routes {
		namespace, ok := strings.CutPrefix(route, indexRoutePrefix)
		if !ok || namespace == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO index_entries(namespace, task_id, rank, expires, updated_at)
VALUES(?, ?, 0, ?, ?)
ON CONFLICT(namespace) DO UPDATE SET
  task_id = excluded.task_id,
  expires = excluded.expires,
  updated_at = excluded.updated_at;
`, namespace, taskID, expires, now)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", namespace, err)
		}
	}

	return taskStatus(taskID, def.TaskGroupID, StatePending), nil
}

// Task returns the definition stored under taskID.
func (s *Store) Task(ctx context.Context, taskID string) (*taskcluster.TaskDefinition, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT definition FROM tasks WHERE task_id = ?;`, taskID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, taskcluster.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	var def taskcluster.TaskDefinition
	if err := json.Unmarshal([]byte(body), &def); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &def, nil
}

// FindTask returns the task indexed under namespace. Expired entries are
// treated as missing.
func (s *Store) FindTask(ctx context.Context, namespace string) (*taskcluster.IndexedTask, error) {
	var out taskcluster.IndexedTask
	err := s.db.QueryRowContext(ctx, `
SELECT namespace, task_id, rank, expires FROM index_entries WHERE namespace = ?;
`, namespace).Scan(&out.Namespace, &out.TaskID, &out.Rank, &out.Expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index %s: %w", namespace, taskcluster.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}

	if expires, err := time.Parse(time.RFC3339, out.Expires); err == nil && !expires.After(s.now()) {
		return nil, fmt.Errorf("index %s expired: %w", namespace, taskcluster.ErrNotFound)
	}
	return &out, nil
}

// ListTaskGroup returns the tasks of a group in creation order.
func (s *Store) ListTaskGroup(ctx context.Context, taskGroupID string) (*taskcluster.TaskGroupList, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT task_id, definition FROM tasks WHERE task_group_id = ? ORDER BY created_at ASC, rowid ASC;
`, taskGroupID)
	if err != nil {
		return nil, fmt.Errorf("list task group: %w", err)
	}
	defer rows.Close()

	out := &taskcluster.TaskGroupList{TaskGroupID: taskGroupID, Tasks: []taskcluster.TaskGroupEntry{}}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		entry := taskcluster.TaskGroupEntry{TaskID: id}
		if err := json.Unmarshal([]byte(body), &entry.Task); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", id, err)
		}
		out.Tasks = append(out.Tasks, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	if len(out.Tasks) == 0 {
		return nil, fmt.Errorf("task group %s: %w", taskGroupID, taskcluster.ErrNotFound)
	}
	return out, nil
}

// StartDecision stores the decision task run.TaskID with definition def
// and the delivery that started it, in one transaction. A delivery seen
// before stores nothing and returns the run recorded for it.
func (s *Store) StartDecision(ctx context.Context, def *taskcluster.TaskDefinition, run DecisionRun) (DecisionRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DecisionRun{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var delivery any
	if run.DeliveryID != "" {
		delivery = run.DeliveryID
		prev, err := scanDecision(tx.QueryRowContext(ctx, selectDecisions+` WHERE delivery_id = ?;`, run.DeliveryID))
		switch {
		case err == nil:
			return prev, nil
		case !errors.Is(err, sql.ErrNoRows):
			return DecisionRun{}, fmt.Errorf("lookup delivery %s: %w", run.DeliveryID, err)
		}
	}

	if _, err := s.createTask(ctx, tx, run.TaskID, def); err != nil {
		return DecisionRun{}, err
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO decision_runs(task_id, task_for, event, delivery_id, git_url, git_ref, git_sha, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, run.TaskID, run.TaskFor, run.Event, delivery, run.GitURL, run.GitRef, run.GitSHA, run.CreatedAt.UTC().Format(timestampFormat))
	if err != nil {
		return DecisionRun{}, fmt.Errorf("record decision run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return DecisionRun{}, fmt.Errorf("commit tx: %w", err)
	}
	return run, nil
}

const selectDecisions = `
SELECT task_id, task_for, event, delivery_id, git_url, git_ref, git_sha, created_at
FROM decision_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (DecisionRun, error) {
	var run DecisionRun
	var delivery sql.NullString
	var created string
	if err := row.Scan(&run.TaskID, &run.TaskFor, &run.Event, &delivery, &run.GitURL, &run.GitRef, &run.GitSHA, &created); err != nil {
		return DecisionRun{}, err
	}
	run.DeliveryID = delivery.String
	t, err := time.Parse(timestampFormat, created)
	if err != nil {
		return DecisionRun{}, fmt.Errorf("parse created_at: %w", err)
	}
	run.CreatedAt = t
	return run, nil
}

// ListDecisions returns the most recent decision runs, newest first.
func (s *Store) ListDecisions(ctx context.Context, limit int) ([]DecisionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectDecisions+`
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decision runs: %w", err)
	}
	defer rows.Close()

	var out []DecisionRun
	for rows.Next() {
		run, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func taskStatus(taskID, groupID string, state State) *taskcluster.TaskStatus {
	var st taskcluster.TaskStatus
	st.Status.TaskID = taskID
	st.Status.TaskGroupID = groupID
	st.Status.State = string(state)
	return &st
}

// indexExpiry is extra.index.expires when set, else the task expiry.
func indexExpiry(def *taskcluster.TaskDefinition) string {
	if index, ok := def.Extra["index"].(map[string]any); ok {
		if expires, ok := index["expires"].(string); ok && expires != "" {
			return expires
		}
	}
	return def.Expires
}
