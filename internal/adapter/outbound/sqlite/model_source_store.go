package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/modelsource"
)

// ModelSourceStore persists registered model endpoints.
type ModelSourceStore struct {
	db *DB
}

// NewModelSourceStore creates a ModelSourceStore over the shared
// database.
func NewModelSourceStore(db *DB) *ModelSourceStore {
	return &ModelSourceStore{db: db}
}

// Create inserts a new model source.
func (s *ModelSourceStore) Create(ctx context.Context, src modelsource.Source) error {
	enabled := 0
	if src.Enabled {
		enabled = 1
	}
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO model_sources (id, name, base_url, api_key_ref, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		src.ID, src.Name, src.BaseURL, src.APIKeyRef, enabled, nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("insert model source: %w", err)
	}
	return nil
}

// Delete removes a model source.
func (s *ModelSourceStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM model_sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete model source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("model source", id)
	}
	return nil
}

// Get returns one model source.
func (s *ModelSourceStore) Get(ctx context.Context, id string) (*modelsource.Source, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, name, base_url, api_key_ref, enabled, created_at
		 FROM model_sources WHERE id = ?`, id,
	)
	src, err := scanModelSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("model source", id)
	}
	return src, err
}

// List returns all model sources ordered by name.
func (s *ModelSourceStore) List(ctx context.Context) ([]modelsource.Source, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, name, base_url, api_key_ref, enabled, created_at
		 FROM model_sources ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query model sources: %w", err)
	}
	defer rows.Close()

	var out []modelsource.Source
	for rows.Next() {
		src, err := scanModelSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// SetEnabled flips a source's enabled flag.
func (s *ModelSourceStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE model_sources SET enabled = ? WHERE id = ?`, v, id,
	)
	if err != nil {
		return fmt.Errorf("update model source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("model source", id)
	}
	return nil
}

func scanModelSource(row rowScanner) (*modelsource.Source, error) {
	var (
		src       modelsource.Source
		enabled   int
		createdAt string
	)
	if err := row.Scan(&src.ID, &src.Name, &src.BaseURL, &src.APIKeyRef, &enabled, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan model source: %w", err)
	}
	src.Enabled = enabled != 0
	src.CreatedAt = parseTime(createdAt)
	return &src, nil
}

var _ modelsource.Store = (*ModelSourceStore)(nil)
