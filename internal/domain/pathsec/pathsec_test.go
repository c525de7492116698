package pathsec

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWithinScopesNoScopeRequired(t *testing.T) {
	ok, reason := WithinScopes("/anywhere/at/all", nil)
	if !ok || reason != ReasonScopeNotRequired {
		t.Errorf("WithinScopes with empty scopes = (%v, %q), want (true, %q)", ok, reason, ReasonScopeNotRequired)
	}
}

func TestWithinScopesContainment(t *testing.T) {
	base := t.TempDir()
	other := t.TempDir()

	tests := []struct {
		name   string
		target string
		scopes []string
		want   bool
		reason string
	}{
		{"exact scope match", base, []string{base}, true, ReasonAllowed},
		{"direct child", filepath.Join(base, "a.txt"), []string{base}, true, ReasonAllowed},
		{"nested child that does not exist", filepath.Join(base, "x", "y", "z.txt"), []string{base}, true, ReasonAllowed},
		{"outside any scope", filepath.Join(other, "a.txt"), []string{base}, false, ReasonOutsideScopes},
		{"sibling prefix is not containment", base + "-evil/file", []string{base}, false, ReasonOutsideScopes},
		{"second scope matches", filepath.Join(other, "b.txt"), []string{base, other}, true, ReasonAllowed},
		{"dot segments collapse", filepath.Join(base, "sub", "..", "a.txt"), []string{base}, true, ReasonAllowed},
		{"escape through dot segments", filepath.Join(base, "..", "esc.txt"), []string{base}, false, ReasonOutsideScopes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := WithinScopes(tt.target, tt.scopes)
			if ok != tt.want || reason != tt.reason {
				t.Errorf("WithinScopes(%q, %v) = (%v, %q), want (%v, %q)",
					tt.target, tt.scopes, ok, reason, tt.want, tt.reason)
			}
		})
	}
}

func TestWithinScopesRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	scope := t.TempDir()
	outside := t.TempDir()

	secret := filepath.Join(outside, "t.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(scope, "link.txt")
	if err := os.Symlink(secret, link); err != nil {
		t.Fatal(err)
	}

	ok, reason := WithinScopes(link, []string{scope})
	if ok {
		t.Fatalf("symlink escape allowed: (%v, %q)", ok, reason)
	}
	if reason != ReasonReparsePoint {
		t.Errorf("reason = %q, want %q", reason, ReasonReparsePoint)
	}
}

func TestWithinScopesRejectsDanglingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	scope := t.TempDir()
	outside := t.TempDir()

	// The link's target does not exist yet; a write through the link
	// would create it outside the scope.
	link := filepath.Join(scope, "link.txt")
	if err := os.Symlink(filepath.Join(outside, "t.txt"), link); err != nil {
		t.Fatal(err)
	}

	ok, reason := WithinScopes(link, []string{scope})
	if ok {
		t.Fatalf("dangling symlink escape allowed: (%v, %q)", ok, reason)
	}
	if reason != ReasonReparsePoint {
		t.Errorf("reason = %q, want %q", reason, ReasonReparsePoint)
	}
}

func TestWithinScopesRejectsSymlinkedDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	scope := t.TempDir()
	outside := t.TempDir()

	linkDir := filepath.Join(scope, "sub")
	if err := os.Symlink(outside, linkDir); err != nil {
		t.Fatal(err)
	}

	// The file under the linked directory need not exist; the link itself
	// is on the ancestor chain.
	ok, reason := WithinScopes(filepath.Join(linkDir, "a.txt"), []string{scope})
	if ok {
		t.Fatalf("symlinked directory escape allowed: (%v, %q)", ok, reason)
	}
	if reason != ReasonReparsePoint {
		t.Errorf("reason = %q, want %q", reason, ReasonReparsePoint)
	}
}

func TestWithinScopesPlainSubdirectoryWalk(t *testing.T) {
	scope := t.TempDir()
	sub := filepath.Join(scope, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	ok, reason := WithinScopes(filepath.Join(sub, "c.txt"), []string{scope})
	if !ok || reason != ReasonAllowed {
		t.Errorf("WithinScopes = (%v, %q), want (true, %q)", ok, reason, ReasonAllowed)
	}
}

func TestNormalize(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := Normalize("~/docs/file.txt")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := filepath.Join(home, "docs", "file.txt")
	if got != want {
		t.Errorf("Normalize(~/docs/file.txt) = %q, want %q", got, want)
	}

	got, err = Normalize("~")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != filepath.Clean(home) {
		t.Errorf("Normalize(~) = %q, want %q", got, home)
	}
}

func TestNormalizeRelative(t *testing.T) {
	got, err := Normalize("rel/file.txt")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("Normalize(rel/file.txt) = %q, want absolute", got)
	}
}
