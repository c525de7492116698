package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

// GrantStore persists permission grants.
type GrantStore struct {
	db *DB
}

// NewGrantStore creates a GrantStore over the shared database.
func NewGrantStore(db *DB) *GrantStore {
	return &GrantStore{db: db}
}

// Replace deletes any grant for (g.Permission, sessionKey-or-null) and
// inserts g, in one transaction.
func (s *GrantStore) Replace(ctx context.Context, g permission.Grant, sessionKey string) error {
	paths, err := json.Marshal(g.AllowedPaths)
	if err != nil {
		return fmt.Errorf("encode paths: %w", err)
	}
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM permission_grants
			 WHERE permission = ? AND (session_id = ? OR session_id IS NULL)`,
			string(g.Permission), sessionKey,
		); err != nil {
			return fmt.Errorf("clear prior grants: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO permission_grants (id, permission, scope, session_id, allowed_paths, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			g.ID, string(g.Permission), string(g.Scope), nullable(g.SessionID), string(paths), nowRFC3339(),
		)
		if err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}
		return nil
	})
}

// Delete removes grants for (perm, session-or-null).
func (s *GrantStore) Delete(ctx context.Context, perm permission.Permission, sessionID string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM permission_grants
		 WHERE permission = ? AND (session_id = ? OR session_id IS NULL)`,
		string(perm), sessionID,
	)
	if err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	return nil
}

// Visible returns grants usable by a session: its own rows plus rows
// with a null session id.
func (s *GrantStore) Visible(ctx context.Context, sessionID string) ([]permission.Grant, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, permission, scope, session_id, allowed_paths, created_at
		 FROM permission_grants
		 WHERE session_id = ? OR session_id IS NULL
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

// Decide runs fn against the grants for (perm, session-or-null) inside
// one write transaction and deletes the row fn nominates for
// consumption. The decision and the delete commit together.
func (s *GrantStore) Decide(ctx context.Context, perm permission.Permission, sessionID string, fn func(candidates []permission.Grant) string) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, permission, scope, session_id, allowed_paths, created_at
			 FROM permission_grants
			 WHERE permission = ? AND (session_id = ? OR session_id IS NULL)
			 ORDER BY created_at`,
			string(perm), sessionID,
		)
		if err != nil {
			return fmt.Errorf("query candidates: %w", err)
		}
		candidates, err := scanGrants(rows)
		rows.Close()
		if err != nil {
			return err
		}

		consumeID := fn(candidates)
		if consumeID == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM permission_grants WHERE id = ?`, consumeID,
		); err != nil {
			return fmt.Errorf("consume grant: %w", err)
		}
		return nil
	})
}

func scanGrants(rows *sql.Rows) ([]permission.Grant, error) {
	var out []permission.Grant
	for rows.Next() {
		var (
			g         permission.Grant
			perm      string
			scope     string
			sessionID sql.NullString
			paths     string
			createdAt string
		)
		if err := rows.Scan(&g.ID, &perm, &scope, &sessionID, &paths, &createdAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Permission = permission.Permission(perm)
		g.Scope = permission.GrantScope(scope)
		g.SessionID = sessionID.String
		g.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(paths), &g.AllowedPaths); err != nil {
			return nil, fmt.Errorf("decode paths: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

var _ permission.GrantStore = (*GrantStore)(nil)
