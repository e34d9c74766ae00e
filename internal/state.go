package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// PhaseStatus tracks the lifecycle of a single pipeline phase for one item.
type PhaseStatus string

const (
	PhaseNotStarted PhaseStatus = "not_started"
	PhaseComplete   PhaseStatus = "complete"
	PhaseFailed     PhaseStatus = "failed"
)

// Artifacts maps artifact names produced by a phase to their locations.
type Artifacts map[string]string

// PhaseRecord is the durable record of one phase attempt.
type PhaseRecord struct {
	Status    PhaseStatus
	Artifacts Artifacts
	Error     string
	UpdatedAt time.Time
}

// PipelineState is the durable per-item record: phase completion flags,
// artifact locations, the last recorded failure. It is the resume
// checkpoint and audit log; records are never deleted automatically.
type PipelineState struct {
	ID        string
	SourceURL string
	LastError string
	UpdatedAt time.Time
	Phases    map[string]PhaseRecord
}

// Phase returns the record for a phase, defaulting to not_started.
func (s *PipelineState) Phase(name string) PhaseRecord {
	if s == nil || s.Phases == nil {
		return PhaseRecord{Status: PhaseNotStarted}
	}
	if rec, ok := s.Phases[name]; ok {
		return rec
	}
	return PhaseRecord{Status: PhaseNotStarted}
}

const stateSchema = `
CREATE TABLE IF NOT EXISTS pipeline_items (
    id         TEXT PRIMARY KEY,
    source_url TEXT NOT NULL,
    last_error TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS phase_records (
    item_id        TEXT NOT NULL REFERENCES pipeline_items(id),
    phase          TEXT NOT NULL,
    status         TEXT NOT NULL,
    artifacts_json TEXT NOT NULL DEFAULT '{}',
    error          TEXT NOT NULL DEFAULT '',
    updated_at     TEXT NOT NULL,
    PRIMARY KEY (item_id, phase)
);
`

// StateStore persists PipelineState records in SQLite. The orchestrator is
// the only writer; a file lock guards against a second process opening the
// same store.
type StateStore struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// OpenStateStore opens (or creates) the pipeline database under dir and
// acquires the process lock. Returns ErrStoreLocked when another process
// holds it.
func OpenStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "pipeline.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring pipeline lock: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	dbPath := filepath.Join(dir, "pipeline.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(stateSchema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &StateStore{db: db, path: dbPath, lock: lock}, nil
}

// Close releases the database and the process lock.
func (s *StateStore) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	return errors.Join(errs...)
}

// Touch creates the item record on first contact. Existing records are
// left untouched.
func (s *StateStore) Touch(ctx context.Context, item WorkItem) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_items (id, source_url, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		item.ID, item.SourceURL, now,
	)
	if err != nil {
		return fmt.Errorf("touch item %s: %w", item.ID, err)
	}
	return nil
}

// Get returns the state for an item, or nil when the item was never touched.
func (s *StateStore) Get(ctx context.Context, id string) (*PipelineState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, last_error, updated_at FROM pipeline_items WHERE id = ?`, id)

	state := &PipelineState{Phases: make(map[string]PhaseRecord)}
	var updatedAt string
	if err := row.Scan(&state.ID, &state.SourceURL, &state.LastError, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	state.UpdatedAt = parseStoredTime(updatedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, status, artifacts_json, error, updated_at FROM phase_records WHERE item_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get phase records for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var phase, status, artifactsJSON, errMsg, phaseUpdated string
		if err := rows.Scan(&phase, &status, &artifactsJSON, &errMsg, &phaseUpdated); err != nil {
			return nil, fmt.Errorf("scan phase record: %w", err)
		}
		artifacts := Artifacts{}
		if err := json.Unmarshal([]byte(artifactsJSON), &artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts for %s/%s: %w", id, phase, err)
		}
		state.Phases[phase] = PhaseRecord{
			Status:    PhaseStatus(status),
			Artifacts: artifacts,
			Error:     errMsg,
			UpdatedAt: parseStoredTime(phaseUpdated),
		}
	}
	return state, rows.Err()
}

// SetPhase records the outcome of one phase attempt. Completed phases carry
// their artifact locations; failed phases carry the error message, which is
// also promoted to the item's last_error.
func (s *StateStore) SetPhase(ctx context.Context, id, phase string, status PhaseStatus, artifacts Artifacts, errMsg string) error {
	if artifacts == nil {
		artifacts = Artifacts{}
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin phase update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO phase_records (item_id, phase, status, artifacts_json, error, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id, phase) DO UPDATE SET
             status = excluded.status,
             artifacts_json = excluded.artifacts_json,
             error = excluded.error,
             updated_at = excluded.updated_at`,
		id, phase, string(status), string(artifactsJSON), errMsg, now,
	)
	if err != nil {
		return fmt.Errorf("record phase %s/%s: %w", id, phase, err)
	}

	itemErr := ""
	if status == PhaseFailed {
		itemErr = errMsg
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE pipeline_items SET last_error = ?, updated_at = ? WHERE id = ?`,
		itemErr, now, id,
	)
	if err != nil {
		return fmt.Errorf("update item %s: %w", id, err)
	}

	return tx.Commit()
}

// ResetFailed retracts failed phase markers for an item so a later run will
// attempt them again. The explicit escape hatch from the failed terminal
// state.
func (s *StateStore) ResetFailed(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM phase_records WHERE item_id = ? AND status = ?`, id, string(PhaseFailed))
	if err != nil {
		return fmt.Errorf("reset failed phases for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		_, err = s.db.ExecContext(ctx,
			`UPDATE pipeline_items SET last_error = '', updated_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return fmt.Errorf("clear last error for %s: %w", id, err)
		}
	}
	return nil
}

// List returns all known items, most recently updated first.
func (s *StateStore) List(ctx context.Context) ([]*PipelineState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM pipeline_items ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	states := make([]*PipelineState, 0, len(ids))
	for _, id := range ids {
		state, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if state != nil {
			states = append(states, state)
		}
	}
	return states, nil
}

func parseStoredTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
