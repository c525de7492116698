package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/profile"
)

// ProfileStore persists profiles.
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a ProfileStore over the shared database.
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `id, name, version, is_active, settings, policy_rules, history, created_at, updated_at`

// Create inserts a new profile at version 1 with empty history.
func (s *ProfileStore) Create(ctx context.Context, p profile.Profile) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	now := nowRFC3339()
	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO profiles (id, name, version, is_active, settings, policy_rules, history, created_at, updated_at)
		 VALUES (?, ?, 1, 0, ?, ?, '[]', ?, ?)`,
		p.ID, p.Name, string(settings), p.PolicyRules, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Update replaces settings and policy text, bumps the version, and
// snapshots the prior settings into history, trimmed to the history
// limit. All of it commits together.
func (s *ProfileStore) Update(ctx context.Context, p profile.Profile) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT settings, history FROM profiles WHERE id = ?`, p.ID,
		)
		var prevSettings, prevHistory string
		if err := row.Scan(&prevSettings, &prevHistory); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fault.NotFound("profile", p.ID)
			}
			return fmt.Errorf("read profile: %w", err)
		}

		var prior map[string]any
		if err := json.Unmarshal([]byte(prevSettings), &prior); err != nil {
			return fmt.Errorf("decode prior settings: %w", err)
		}
		var history []map[string]any
		if err := json.Unmarshal([]byte(prevHistory), &history); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
		history = append([]map[string]any{prior}, history...)
		if len(history) > profile.HistoryLimit {
			history = history[:profile.HistoryLimit]
		}

		settings, err := json.Marshal(p.Settings)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		historyJSON, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE profiles
			 SET settings = ?, policy_rules = ?, history = ?, version = version + 1, updated_at = ?
			 WHERE id = ?`,
			string(settings), p.PolicyRules, string(historyJSON), nowRFC3339(), p.ID,
		)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		return nil
	})
}

// Delete removes a profile.
func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("profile", id)
	}
	return nil
}

// Get returns one profile by id.
func (s *ProfileStore) Get(ctx context.Context, id string) (*profile.Profile, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("profile", id)
	}
	return p, err
}

// GetByName returns one profile by name.
func (s *ProfileStore) GetByName(ctx context.Context, name string) (*profile.Profile, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("profile", name)
	}
	return p, err
}

// List returns all profiles ordered by name.
func (s *ProfileStore) List(ctx context.Context) ([]profile.Profile, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Activate flips the active flag to the given profile, clearing it on
// every other row in the same transaction.
func (s *ProfileStore) Activate(ctx context.Context, id string) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE profiles SET is_active = 1, updated_at = ? WHERE id = ?`,
			nowRFC3339(), id,
		)
		if err != nil {
			return fmt.Errorf("activate profile: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fault.NotFound("profile", id)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET is_active = 0 WHERE id != ?`, id,
		); err != nil {
			return fmt.Errorf("clear other profiles: %w", err)
		}
		return nil
	})
}

// Active returns the active profile, or nil when none is.
func (s *ProfileStore) Active(ctx context.Context) (*profile.Profile, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE is_active = 1`,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanProfile(row rowScanner) (*profile.Profile, error) {
	var (
		p         profile.Profile
		isActive  int
		settings  string
		history   string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Version, &isActive, &settings, &p.PolicyRules,
		&history, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &p.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

var _ profile.Store = (*ProfileStore)(nil)
