// Package memory provides in-memory implementations of the domain
// store interfaces. They back unit tests and ephemeral CLI commands;
// the server always runs on the sqlite adapter.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

// GrantStore is an in-memory permission.GrantStore. Decide holds the
// store lock for the whole decision, mirroring the sqlite adapter's
// single transaction.
type GrantStore struct {
	mu     sync.Mutex
	grants []permission.Grant
}

// NewGrantStore creates an empty grant store.
func NewGrantStore() *GrantStore {
	return &GrantStore{}
}

// Replace deletes any grant for (g.Permission, sessionKey-or-null) and
// inserts g.
func (s *GrantStore) Replace(_ context.Context, g permission.Grant, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.grants[:0]
	for _, existing := range s.grants {
		if existing.Permission == g.Permission &&
			(existing.SessionID == sessionKey || existing.SessionID == "") {
			continue
		}
		kept = append(kept, existing)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	s.grants = append(kept, g)
	return nil
}

// Delete removes grants for (perm, session-or-null).
func (s *GrantStore) Delete(_ context.Context, perm permission.Permission, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.grants[:0]
	for _, g := range s.grants {
		if g.Permission == perm && (g.SessionID == sessionID || g.SessionID == "") {
			continue
		}
		kept = append(kept, g)
	}
	s.grants = kept
	return nil
}

// Visible returns the session's own grants plus null-session grants.
func (s *GrantStore) Visible(_ context.Context, sessionID string) ([]permission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []permission.Grant
	for _, g := range s.grants {
		if g.SessionID == sessionID || g.SessionID == "" {
			out = append(out, g)
		}
	}
	return out, nil
}

// Decide runs fn against the candidates for (perm, session-or-null) and
// removes the row fn nominates, atomically under the store lock.
func (s *GrantStore) Decide(_ context.Context, perm permission.Permission, sessionID string, fn func(candidates []permission.Grant) string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []permission.Grant
	for _, g := range s.grants {
		if g.Permission == perm && (g.SessionID == sessionID || g.SessionID == "") {
			candidates = append(candidates, g)
		}
	}

	consumeID := fn(candidates)
	if consumeID == "" {
		return nil
	}
	kept := s.grants[:0]
	for _, g := range s.grants {
		if g.ID == consumeID {
			continue
		}
		kept = append(kept, g)
	}
	s.grants = kept
	return nil
}

var _ permission.GrantStore = (*GrantStore)(nil)
