package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/secret"
)

// SecretStore persists sealed secret blobs.
type SecretStore struct {
	db *DB
}

// NewSecretStore creates a SecretStore over the shared database.
func NewSecretStore(db *DB) *SecretStore {
	return &SecretStore{db: db}
}

// Put upserts the sealed blob under name.
func (s *SecretStore) Put(ctx context.Context, name, blob string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO secrets (name, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		name, blob, nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("upsert secret: %w", err)
	}
	return nil
}

// Get returns the sealed blob for name.
func (s *SecretStore) Get(ctx context.Context, name string) (string, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT blob FROM secrets WHERE name = ?`, name,
	)
	var blob string
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fault.NotFound("secret", name)
		}
		return "", fmt.Errorf("read secret: %w", err)
	}
	return blob, nil
}

// Delete removes a secret.
func (s *SecretStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM secrets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("secret", name)
	}
	return nil
}

// List returns secret names and update times, never values.
func (s *SecretStore) List(ctx context.Context) ([]secret.Meta, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT name, updated_at FROM secrets ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query secrets: %w", err)
	}
	defer rows.Close()

	var out []secret.Meta
	for rows.Next() {
		var (
			m         secret.Meta
			updatedAt string
		)
		if err := rows.Scan(&m.Name, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan secret: %w", err)
		}
		m.UpdatedAt = parseTime(updatedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ secret.Store = (*SecretStore)(nil)
