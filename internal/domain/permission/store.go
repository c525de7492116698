package permission

import "context"

// GrantStore provides grant persistence.
// This interface is defined in the domain to avoid circular imports.
// Implementations: SQLite (prod), in-memory (test).
type GrantStore interface {
	// Replace atomically deletes any grant for (g.Permission, session-or-null)
	// and inserts g. The delete matches rows whose session id equals
	// sessionKey or is null, mirroring the visibility rule of Visible.
	Replace(ctx context.Context, g Grant, sessionKey string) error

	// Delete removes grants for (perm, session-or-null).
	Delete(ctx context.Context, perm Permission, sessionID string) error

	// Visible returns grants a session can use: its own rows plus rows
	// with a null session id.
	Visible(ctx context.Context, sessionID string) ([]Grant, error)

	// Decide runs fn inside a single write transaction against the grants
	// visible to (perm, sessionID). fn returns the id of the grant row to
	// consume, or empty to keep all rows. The delete and the decision
	// commit together, so two concurrent checks cannot both consume the
	// same once grant.
	Decide(ctx context.Context, perm Permission, sessionID string, fn func(candidates []Grant) (consumeID string)) error
}
