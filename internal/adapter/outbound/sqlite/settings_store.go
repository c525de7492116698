package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/settings"
)

// SettingsStore persists explicit app-level setting writes. Values are
// stored as JSON so booleans, numbers, and strings round-trip.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a SettingsStore over the shared database.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// All returns every persisted key→value pair.
func (s *SettingsStore) All(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.sql.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return nil, fmt.Errorf("decode setting %q: %w", key, err)
		}
		out[key] = v
	}
	return out, rows.Err()
}

// Set upserts one key.
func (s *SettingsStore) Set(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return nil
}

// Unset removes one key, falling back to the registry default.
func (s *SettingsStore) Unset(ctx context.Context, key string) error {
	_, err := s.db.sql.ExecContext(ctx, `DELETE FROM app_settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

var _ settings.Store = (*SettingsStore)(nil)
