// Package profile manages named settings snapshots. Exactly one profile
// is active at a time; its settings and policy text feed the effective
// settings merge and the policy guard.
package profile

import (
	"context"
	"time"
)

// HistoryLimit caps the number of prior settings snapshots kept per
// profile.
const HistoryLimit = 10

// Profile is a named snapshot of settings and policy text.
type Profile struct {
	ID       string
	Name     string
	Version  int
	IsActive bool
	// Settings holds key→value overrides applied on top of the registry
	// defaults when this profile is active.
	Settings map[string]any
	// PolicyRules is the profile's policy DSL text; empty means none.
	PolicyRules string
	// History holds prior settings maps, newest first, trimmed to
	// HistoryLimit.
	History   []map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists profiles.
// Interface owned by the domain; implemented by the sqlite adapter.
type Store interface {
	Create(ctx context.Context, p Profile) error

	// Update replaces the profile's mutable fields, bumps the version,
	// appends the previous settings map to history and trims it to
	// HistoryLimit, all in one transaction.
	Update(ctx context.Context, p Profile) error

	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Profile, error)
	GetByName(ctx context.Context, name string) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)

	// Activate flips the active flag to the given profile, clearing it
	// everywhere else in the same transaction.
	Activate(ctx context.Context, id string) error

	// Active returns the active profile, or nil when none is active.
	Active(ctx context.Context) (*Profile, error)
}
