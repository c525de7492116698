// Package sqlite is the persistence adapter: one local SQLite database
// holding grants, audit rows, runs, profiles, workspaces, settings,
// secrets, and model sources. The pure-Go driver keeps the binary free
// of cgo; WAL and a busy timeout make short concurrent transactions
// safe.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// schema is idempotent DDL, applied on every open.
const schema = `
CREATE TABLE IF NOT EXISTS permission_grants (
	id            TEXT PRIMARY KEY,
	permission    TEXT NOT NULL,
	scope         TEXT NOT NULL,
	session_id    TEXT,
	allowed_paths TEXT NOT NULL DEFAULT '[]',
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_grants_perm_session
	ON permission_grants(permission, session_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         TEXT PRIMARY KEY,
	session_id TEXT,
	event_type TEXT NOT NULL,
	summary    TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_logs(created_at);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	mode            TEXT NOT NULL,
	input_hash      TEXT NOT NULL,
	input_text      TEXT,
	model_source_id TEXT,
	model_name      TEXT,
	duration_ms     INTEGER,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_events (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, created_at);

CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	version      INTEGER NOT NULL DEFAULT 1,
	is_active    INTEGER NOT NULL DEFAULT 0,
	settings     TEXT NOT NULL DEFAULT '{}',
	policy_rules TEXT NOT NULL DEFAULT '',
	history      TEXT NOT NULL DEFAULT '[]',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workspaces (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL UNIQUE,
	is_active          INTEGER NOT NULL DEFAULT 0,
	scopes             TEXT NOT NULL DEFAULT '[]',
	tools              TEXT NOT NULL DEFAULT '[]',
	settings           TEXT NOT NULL DEFAULT '{}',
	policy_rules       TEXT NOT NULL DEFAULT '',
	default_profile_id TEXT,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS app_settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS secrets (
	name       TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS model_sources (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	base_url    TEXT NOT NULL,
	api_key_ref TEXT NOT NULL DEFAULT '',
	enabled     INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL
);
`

// DB wraps the shared connection pool.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. The parent directory is created when missing.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The pure-Go driver serializes writes; a single connection avoids
	// SQLITE_BUSY churn under write contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{sql: db}, nil
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

// inTx runs fn inside a transaction, rolling back on error.
func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nowRFC3339 renders the current UTC instant in the stored timestamp
// format. Nanoseconds keep event ordering stable within one run.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// parseTime reads a stored timestamp, zero on malformed input.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
