package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
)

// RunStore persists runs and their event streams.
type RunStore struct {
	db *DB
}

// NewRunStore creates a RunStore over the shared database.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Create inserts a new open run.
func (s *RunStore) Create(ctx context.Context, r run.Run) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, mode, input_hash, input_text, model_source_id, model_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Mode, r.InputHash, nullable(r.InputText),
		nullable(r.ModelSourceID), nullable(r.ModelName), nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// AppendEvent appends one event to a run.
func (s *RunStore) AppendEvent(ctx context.Context, e run.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO run_events (id, run_id, event_type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.EventType, string(payload), nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}
	return nil
}

// Finish records the run's duration.
func (s *RunStore) Finish(ctx context.Context, runID string, durationMS int64) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE runs SET duration_ms = ? WHERE id = ?`, durationMS, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("run", runID)
	}
	return nil
}

// Get returns one run.
func (s *RunStore) Get(ctx context.Context, runID string) (*run.Run, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, session_id, mode, input_hash, input_text, model_source_id, model_name, duration_ms, created_at
		 FROM runs WHERE id = ?`, runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("run", runID)
	}
	return r, err
}

// Events returns the run's events ordered by creation time.
func (s *RunStore) Events(ctx context.Context, runID string) ([]run.Event, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, run_id, event_type, payload, created_at
		 FROM run_events WHERE run_id = ? ORDER BY created_at`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var out []run.Event
	for rows.Next() {
		var (
			e         run.Event
			payload   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.EventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(ctx context.Context, limit int) ([]run.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, session_id, mode, input_hash, input_text, model_source_id, model_name, duration_ms, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []run.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*run.Run, error) {
	var (
		r           run.Run
		inputText   sql.NullString
		modelSource sql.NullString
		modelName   sql.NullString
		durationMS  sql.NullInt64
		createdAt   string
	)
	if err := row.Scan(
		&r.ID, &r.SessionID, &r.Mode, &r.InputHash, &inputText,
		&modelSource, &modelName, &durationMS, &createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.InputText = inputText.String
	r.ModelSourceID = modelSource.String
	r.ModelName = modelName.String
	if durationMS.Valid {
		v := durationMS.Int64
		r.DurationMS = &v
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

var _ run.Store = (*RunStore)(nil)
