package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/workspace"
)

// WorkspaceStore persists workspaces.
type WorkspaceStore struct {
	db *DB
}

// NewWorkspaceStore creates a WorkspaceStore over the shared database.
func NewWorkspaceStore(db *DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

const workspaceColumns = `id, name, is_active, scopes, tools, settings, policy_rules, default_profile_id, created_at, updated_at`

// Create inserts a new workspace.
func (s *WorkspaceStore) Create(ctx context.Context, w workspace.Workspace) error {
	scopes, tools, settings, err := encodeWorkspace(w)
	if err != nil {
		return err
	}
	now := nowRFC3339()
	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, is_active, scopes, tools, settings, policy_rules, default_profile_id, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, scopes, tools, settings, w.PolicyRules,
		nullable(w.DefaultProfileID), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// Update replaces the workspace's mutable fields.
func (s *WorkspaceStore) Update(ctx context.Context, w workspace.Workspace) error {
	scopes, tools, settings, err := encodeWorkspace(w)
	if err != nil {
		return err
	}
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE workspaces
		 SET name = ?, scopes = ?, tools = ?, settings = ?, policy_rules = ?, default_profile_id = ?, updated_at = ?
		 WHERE id = ?`,
		w.Name, scopes, tools, settings, w.PolicyRules,
		nullable(w.DefaultProfileID), nowRFC3339(), w.ID,
	)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("workspace", w.ID)
	}
	return nil
}

// Delete removes a workspace.
func (s *WorkspaceStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("workspace", id)
	}
	return nil
}

// Get returns one workspace by id.
func (s *WorkspaceStore) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id,
	)
	w, err := scanWorkspace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("workspace", id)
	}
	return w, err
}

// List returns all workspaces ordered by name.
func (s *WorkspaceStore) List(ctx context.Context) ([]workspace.Workspace, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer rows.Close()

	var out []workspace.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// Activate flips the active flag to the given workspace, clearing it
// everywhere else, and activates the workspace's default profile when
// one is set. Everything commits together.
func (s *WorkspaceStore) Activate(ctx context.Context, id string) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT default_profile_id FROM workspaces WHERE id = ?`, id,
		)
		var defaultProfile sql.NullString
		if err := row.Scan(&defaultProfile); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fault.NotFound("workspace", id)
			}
			return fmt.Errorf("read workspace: %w", err)
		}

		now := nowRFC3339()
		if _, err := tx.ExecContext(ctx,
			`UPDATE workspaces SET is_active = CASE WHEN id = ? THEN 1 ELSE 0 END, updated_at = ?`,
			id, now,
		); err != nil {
			return fmt.Errorf("activate workspace: %w", err)
		}

		if defaultProfile.Valid && defaultProfile.String != "" {
			res, err := tx.ExecContext(ctx,
				`UPDATE profiles SET is_active = 1, updated_at = ? WHERE id = ?`,
				now, defaultProfile.String,
			)
			if err != nil {
				return fmt.Errorf("activate default profile: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fault.NotFound("profile", defaultProfile.String)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE profiles SET is_active = 0 WHERE id != ?`, defaultProfile.String,
			); err != nil {
				return fmt.Errorf("clear other profiles: %w", err)
			}
		}
		return nil
	})
}

// Deactivate clears the active flag everywhere.
func (s *WorkspaceStore) Deactivate(ctx context.Context) error {
	_, err := s.db.sql.ExecContext(ctx,
		`UPDATE workspaces SET is_active = 0, updated_at = ? WHERE is_active = 1`,
		nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("deactivate workspaces: %w", err)
	}
	return nil
}

// Active returns the active workspace, or nil when none is.
func (s *WorkspaceStore) Active(ctx context.Context) (*workspace.Workspace, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE is_active = 1`,
	)
	w, err := scanWorkspace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func encodeWorkspace(w workspace.Workspace) (scopes, tools, settings string, err error) {
	if w.Scopes == nil {
		w.Scopes = []string{}
	}
	if w.Tools == nil {
		w.Tools = []string{}
	}
	if w.Settings == nil {
		w.Settings = map[string]any{}
	}
	sc, err := json.Marshal(w.Scopes)
	if err != nil {
		return "", "", "", fmt.Errorf("encode scopes: %w", err)
	}
	tl, err := json.Marshal(w.Tools)
	if err != nil {
		return "", "", "", fmt.Errorf("encode tools: %w", err)
	}
	st, err := json.Marshal(w.Settings)
	if err != nil {
		return "", "", "", fmt.Errorf("encode settings: %w", err)
	}
	return string(sc), string(tl), string(st), nil
}

func scanWorkspace(row rowScanner) (*workspace.Workspace, error) {
	var (
		w              workspace.Workspace
		isActive       int
		scopes         string
		tools          string
		settings       string
		defaultProfile sql.NullString
		createdAt      string
		updatedAt      string
	)
	if err := row.Scan(
		&w.ID, &w.Name, &isActive, &scopes, &tools, &settings,
		&w.PolicyRules, &defaultProfile, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	w.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(scopes), &w.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	if err := json.Unmarshal([]byte(tools), &w.Tools); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &w.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	w.DefaultProfileID = defaultProfile.String
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

var _ workspace.Store = (*WorkspaceStore)(nil)
