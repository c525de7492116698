// Package workspace manages named working contexts: a set of allowed
// path scopes, a tool allowlist, settings overrides, and optional policy
// text. At most one workspace is active; an active workspace narrows
// what the policy guard admits.
package workspace

import (
	"context"
	"time"
)

// Workspace is one named working context.
type Workspace struct {
	ID       string
	Name     string
	IsActive bool
	// Scopes are the allowed path roots, stored in normalized absolute
	// form. Paths outside them are denied (or quarantined) while the
	// workspace is active.
	Scopes []string
	// Tools is the explicit tool allowlist; empty means no tool
	// constraint.
	Tools []string
	// Settings overrides applied on top of profile settings.
	Settings map[string]any
	// PolicyRules is the workspace's policy DSL text; empty means none.
	PolicyRules string
	// DefaultProfileID, when set, is activated together with the
	// workspace.
	DefaultProfileID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Store persists workspaces.
// Interface owned by the domain; implemented by the sqlite adapter.
type Store interface {
	Create(ctx context.Context, w Workspace) error
	Update(ctx context.Context, w Workspace) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Workspace, error)
	List(ctx context.Context) ([]Workspace, error)

	// Activate flips the active flag to the given workspace and, when it
	// names a default profile, activates that profile in the same
	// transaction.
	Activate(ctx context.Context, id string) error

	// Deactivate clears the active flag everywhere; no workspace is
	// active afterwards.
	Deactivate(ctx context.Context) error

	// Active returns the active workspace, or nil when none is active.
	Active(ctx context.Context) (*Workspace, error)
}
