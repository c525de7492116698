// Package permission implements the default-deny grant store. Every
// capability a model-driven request can exercise is one of a closed set
// of permissions, and a permission is usable only while a stored grant
// covers it for the calling session.
package permission

import (
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// Permission identifies one grantable capability. The set is closed;
// anything outside it fails validation.
type Permission string

// The permission enum.
const (
	FilesystemRead  Permission = "filesystem.read"
	FilesystemWrite Permission = "filesystem.write"
	WebSearch       Permission = "web.search"
	ScreenCapture   Permission = "screen.capture"
	ClipboardRead   Permission = "clipboard.read"
	ClipboardWrite  Permission = "clipboard.write"
	ProcessRun      Permission = "process.run"
)

// All lists every known permission.
var All = []Permission{
	FilesystemRead,
	FilesystemWrite,
	WebSearch,
	ScreenCapture,
	ClipboardRead,
	ClipboardWrite,
	ProcessRun,
}

// Parse validates a permission name.
func Parse(s string) (Permission, error) {
	for _, p := range All {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fault.Validation("unknown permission %q", s)
}

func (p Permission) String() string {
	return string(p)
}

// GrantScope is the lifetime of a grant.
type GrantScope string

// The grant scope enum.
const (
	// ScopeOnce self-destructs on first successful consumption.
	ScopeOnce GrantScope = "once"
	// ScopeSession is bound to one session id.
	ScopeSession GrantScope = "session"
	// ScopeAlways applies to any session.
	ScopeAlways GrantScope = "always"
)

// ParseScope validates a grant scope name.
func ParseScope(s string) (GrantScope, error) {
	switch GrantScope(s) {
	case ScopeOnce, ScopeSession, ScopeAlways:
		return GrantScope(s), nil
	}
	return "", fault.Validation("unknown grant scope %q", s)
}

func (s GrantScope) String() string {
	return string(s)
}

// Grant is one stored permission grant. AllowedPaths, when non-empty,
// restricts the grant to paths contained in those directories; the paths
// are stored in normalized absolute form.
type Grant struct {
	ID         string
	Permission Permission
	Scope      GrantScope
	// SessionID binds the grant to one session. Empty means the grant is
	// visible to every session (always grants).
	SessionID    string
	AllowedPaths []string
	CreatedAt    time.Time
}
