package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/pathsec"
)

// Check decision reasons.
const (
	ReasonNoGrant = "No grant found"
	ReasonGranted = "Granted"
)

// Recorder records audit events.
// This interface is satisfied by service.AuditService.
type Recorder interface {
	Record(rec audit.Record)
}

// Broker is the permission broker: a default-deny store of user-granted
// permissions scoped by session and path. A missing grant is a denial,
// never an error; callers translate denials to typed permission errors.
type Broker struct {
	store  GrantStore
	audit  Recorder
	logger *slog.Logger
}

// NewBroker creates a Broker. recorder may be nil when auditing is not
// wanted (tests); logger may be nil.
func NewBroker(store GrantStore, recorder Recorder, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{store: store, audit: recorder, logger: logger}
}

// Grant stores a new grant, replacing any existing grant for the same
// permission visible to this session. Paths are normalized to absolute
// form before storage. scope=always forces a null session binding.
func (b *Broker) Grant(ctx context.Context, perm Permission, scope GrantScope, sessionID string, allowedPaths []string) (*Grant, error) {
	if scope != ScopeAlways && sessionID == "" {
		return nil, fault.Validation("scope %s requires a session id", scope)
	}
	normalized := make([]string, 0, len(allowedPaths))
	for _, p := range allowedPaths {
		np, err := pathsec.Normalize(p)
		if err != nil {
			return nil, fault.Validation("invalid path %q: %v", p, err)
		}
		normalized = append(normalized, np)
	}

	g := Grant{
		ID:           uuid.NewString(),
		Permission:   perm,
		Scope:        scope,
		SessionID:    sessionID,
		AllowedPaths: normalized,
	}
	if scope == ScopeAlways {
		g.SessionID = ""
	}
	if err := b.store.Replace(ctx, g, sessionID); err != nil {
		return nil, fmt.Errorf("store grant: %w", err)
	}

	b.logger.Debug("permission granted",
		"permission", perm, "scope", scope, "paths", len(normalized))
	b.record(audit.Record{
		SessionID: sessionID,
		EventType: audit.EventPermissionGrant,
		Summary:   fmt.Sprintf("Granted %s with scope %s", perm, scope),
		Payload:   map[string]any{"permission": string(perm), "scope": string(scope)},
	})
	return &g, nil
}

// Check reports whether perm is usable by the session, optionally for a
// specific path. The best-matching grant is preferred by exact session
// match over the null-session row. A once grant belonging to this session
// is consumed atomically with a positive decision; a denial due to path
// scope does not consume it.
func (b *Broker) Check(ctx context.Context, perm Permission, sessionID, path string) (bool, string, error) {
	return b.decide(ctx, perm, sessionID, path, true)
}

// Validate is Check without consumption: it answers the same question
// but leaves once grants in place. Callers use it to vet additional path
// arguments of a call whose grant was already consumed by Check.
func (b *Broker) Validate(ctx context.Context, perm Permission, sessionID, path string) (bool, string, error) {
	return b.decide(ctx, perm, sessionID, path, false)
}

func (b *Broker) decide(ctx context.Context, perm Permission, sessionID, path string, consume bool) (bool, string, error) {
	allowed := false
	reason := ReasonNoGrant

	err := b.store.Decide(ctx, perm, sessionID, func(candidates []Grant) string {
		best := selectGrant(candidates, sessionID)
		if best == nil {
			return ""
		}
		if path != "" {
			ok, pathReason := pathsec.WithinScopes(path, best.AllowedPaths)
			if !ok {
				reason = pathReason
				return ""
			}
		}
		allowed, reason = true, ReasonGranted
		if consume && best.Scope == ScopeOnce && best.SessionID == sessionID {
			return best.ID
		}
		return ""
	})
	if err != nil {
		return false, "", fmt.Errorf("check grant: %w", err)
	}
	return allowed, reason, nil
}

// Revoke deletes grants for (perm, this session or null session).
func (b *Broker) Revoke(ctx context.Context, perm Permission, sessionID string) error {
	if err := b.store.Delete(ctx, perm, sessionID); err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	b.record(audit.Record{
		SessionID: sessionID,
		EventType: audit.EventPermissionRevoke,
		Summary:   fmt.Sprintf("Revoked %s", perm),
		Payload:   map[string]any{"permission": string(perm)},
	})
	return nil
}

// List returns the grants visible to a session: its own rows plus
// null-session rows.
func (b *Broker) List(ctx context.Context, sessionID string) ([]Grant, error) {
	grants, err := b.store.Visible(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

func (b *Broker) record(rec audit.Record) {
	if b.audit != nil {
		b.audit.Record(rec)
	}
}

// selectGrant prefers the row whose session matches over the null-session
// row. Candidates are already restricted to (perm, session-or-null).
func selectGrant(candidates []Grant, sessionID string) *Grant {
	var fallback *Grant
	for i := range candidates {
		g := &candidates[i]
		if g.SessionID == sessionID && sessionID != "" {
			return g
		}
		if g.SessionID == "" && fallback == nil {
			fallback = g
		}
	}
	return fallback
}
