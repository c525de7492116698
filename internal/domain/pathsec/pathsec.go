// Package pathsec decides whether filesystem paths are contained in a set
// of allowed scope directories and blocks escapes through filesystem
// redirection (symbolic links, junctions, reparse points).
package pathsec

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Decision reasons returned alongside the boolean verdict.
const (
	ReasonScopeNotRequired = "Scope not required"
	ReasonAllowed          = "Path allowed"
	ReasonReparsePoint     = "Path contains a reparse point/junction"
	ReasonOutsideScopes    = "Path outside allowed scopes"
)

// Normalize expands a leading ~ to the user home directory and converts
// the path to cleaned absolute form. The path does not need to exist and
// symlinks are deliberately not resolved; containment checks must see the
// path as the caller named it.
func Normalize(value string) (string, error) {
	p := value
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if p == "~" {
			p = home
		} else {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// WithinScopes reports whether target is contained in any of the allowed
// scope directories. An empty scope list means no scope is required. When
// a scope matches, the chain of existing ancestors between the target and
// the scope is walked with lstat; any symlink or reparse point on that
// chain rejects the path, so a link inside a scope cannot redirect reads
// or writes outside it.
func WithinScopes(target string, scopes []string) (bool, string) {
	if len(scopes) == 0 {
		return true, ReasonScopeNotRequired
	}

	t, err := Normalize(target)
	if err != nil {
		return false, ReasonOutsideScopes
	}
	for _, raw := range scopes {
		s, err := Normalize(raw)
		if err != nil {
			continue
		}
		if !samePath(t, s) && !isAncestor(s, t) {
			continue
		}
		cur := nearestExisting(t)
		for !samePath(cur, s) && isAncestor(s, cur) {
			if isReparsePoint(cur) {
				return false, ReasonReparsePoint
			}
			cur = filepath.Dir(cur)
		}
		return true, ReasonAllowed
	}
	return false, ReasonOutsideScopes
}

// nearestExisting walks upward from p to the first path that exists.
// The walk starts at p itself so a link as the final component is seen.
// Lstat, not Stat: a dangling link exists as a node even though its
// target does not, and it must stay on the chain for the reparse check.
func nearestExisting(p string) string {
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return cur
		}
		cur = parent
	}
}

func isReparsePoint(p string) bool {
	fi, err := os.Lstat(p)
	if err != nil {
		return false
	}
	return fi.Mode()&(os.ModeSymlink|os.ModeIrregular) != 0
}

// samePath compares cleaned absolute paths, case-insensitively on Windows.
func samePath(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// isAncestor reports whether scope is a proper ancestor of p.
func isAncestor(scope, p string) bool {
	prefix := scope
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if runtime.GOOS == "windows" {
		return len(p) >= len(prefix) && strings.EqualFold(p[:len(prefix)], prefix)
	}
	return strings.HasPrefix(p, prefix)
}
