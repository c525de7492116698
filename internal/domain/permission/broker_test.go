package permission

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/pathsec"
)

// mockGrantStore is an in-memory GrantStore with the same visibility and
// consumption semantics as the SQLite adapter.
type mockGrantStore struct {
	mu     sync.Mutex
	grants []Grant
}

func (m *mockGrantStore) Replace(_ context.Context, g Grant, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.grants[:0]
	for _, existing := range m.grants {
		if existing.Permission == g.Permission && (existing.SessionID == sessionKey || existing.SessionID == "") {
			continue
		}
		kept = append(kept, existing)
	}
	m.grants = append(kept, g)
	return nil
}

func (m *mockGrantStore) Delete(_ context.Context, perm Permission, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.grants[:0]
	for _, g := range m.grants {
		if g.Permission == perm && (g.SessionID == sessionID || g.SessionID == "") {
			continue
		}
		kept = append(kept, g)
	}
	m.grants = kept
	return nil
}

func (m *mockGrantStore) Visible(_ context.Context, sessionID string) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Grant
	for _, g := range m.grants {
		if g.SessionID == sessionID || g.SessionID == "" {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGrantStore) Decide(_ context.Context, perm Permission, sessionID string, fn func([]Grant) string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var candidates []Grant
	for _, g := range m.grants {
		if g.Permission == perm && (g.SessionID == sessionID || g.SessionID == "") {
			candidates = append(candidates, g)
		}
	}
	consumeID := fn(candidates)
	if consumeID == "" {
		return nil
	}
	kept := m.grants[:0]
	for _, g := range m.grants {
		if g.ID == consumeID {
			continue
		}
		kept = append(kept, g)
	}
	m.grants = kept
	return nil
}

// mockRecorder captures audit records.
type mockRecorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *mockRecorder) Record(rec audit.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

func (m *mockRecorder) byType(eventType string) []audit.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Record
	for _, r := range m.records {
		if r.EventType == eventType {
			out = append(out, r)
		}
	}
	return out
}

func newTestBroker() (*Broker, *mockGrantStore, *mockRecorder) {
	store := &mockGrantStore{}
	rec := &mockRecorder{}
	return NewBroker(store, rec, nil), store, rec
}

func TestCheckWithoutGrant(t *testing.T) {
	b, _, _ := newTestBroker()
	allowed, reason, err := b.Check(context.Background(), FilesystemRead, "s1", "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed || reason != ReasonNoGrant {
		t.Errorf("Check = (%v, %q), want (false, %q)", allowed, reason, ReasonNoGrant)
	}
}

func TestOnceGrantConsumedOnSuccess(t *testing.T) {
	b, _, _ := newTestBroker()
	ctx := context.Background()
	base := t.TempDir()

	if _, err := b.Grant(ctx, FilesystemRead, ScopeOnce, "s1", []string{base}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	target := filepath.Join(base, "a.txt")
	allowed, reason, err := b.Check(ctx, FilesystemRead, "s1", target)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !allowed || reason != ReasonGranted {
		t.Fatalf("first Check = (%v, %q), want (true, %q)", allowed, reason, ReasonGranted)
	}

	allowed, reason, err = b.Check(ctx, FilesystemRead, "s1", target)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed || reason != ReasonNoGrant {
		t.Errorf("second Check = (%v, %q), want (false, %q)", allowed, reason, ReasonNoGrant)
	}
}

func TestValidateLeavesOnceGrantInPlace(t *testing.T) {
	b, _, _ := newTestBroker()
	ctx := context.Background()
	base := t.TempDir()

	if _, err := b.Grant(ctx, FilesystemRead, ScopeOnce, "s1", []string{base}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	// Any number of validations leave the grant untouched.
	for i := 0; i < 3; i++ {
		target := filepath.Join(base, "a.txt")
		allowed, reason, err := b.Validate(ctx, FilesystemRead, "s1", target)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if !allowed || reason != ReasonGranted {
			t.Fatalf("Validate #%d = (%v, %q), want (true, %q)", i+1, allowed, reason, ReasonGranted)
		}
	}

	allowed, _, err := b.Check(ctx, FilesystemRead, "s1", filepath.Join(base, "a.txt"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !allowed {
		t.Error("Validate consumed the once grant")
	}
}

func TestOnceGrantSurvivesPathDenial(t *testing.T) {
	b, _, _ := newTestBroker()
	ctx := context.Background()
	base := t.TempDir()
	outside := t.TempDir()

	if _, err := b.Grant(ctx, FilesystemRead, ScopeOnce, "s1", []string{base}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	allowed, reason, err := b.Check(ctx, FilesystemRead, "s1", filepath.Join(outside, "x.txt"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed {
		t.Fatalf("out-of-scope Check allowed, reason %q", reason)
	}
	if reason != pathsec.ReasonOutsideScopes {
		t.Errorf("reason = %q, want %q", reason, pathsec.ReasonOutsideScopes)
	}

	// The denial must not have consumed the grant.
	allowed, _, err = b.Check(ctx, FilesystemRead, "s1", filepath.Join(base, "ok.txt"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !allowed {
		t.Error("grant was consumed by a failed path check")
	}
}

func TestSymlinkInsideScopeRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	b, _, _ := newTestBroker()
	ctx := context.Background()
	scope := t.TempDir()
	outside := t.TempDir()

	secret := filepath.Join(outside, "t.txt")
	if err := os.WriteFile(secret, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(scope, "link.txt")
	if err := os.Symlink(secret, link); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Grant(ctx, FilesystemRead, ScopeSession, "s1", []string{scope}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	allowed, reason, err := b.Check(ctx, FilesystemRead, "s1", link)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed {
		t.Fatal("symlink escape allowed")
	}
	if reason != pathsec.ReasonReparsePoint {
		t.Errorf("reason = %q, want %q", reason, pathsec.ReasonReparsePoint)
	}
}

func TestSessionGrantPreferredOverAlways(t *testing.T) {
	b, _, _ := newTestBroker()
	ctx := context.Background()
	sessionDir := t.TempDir()
	alwaysDir := t.TempDir()

	// s1 gets a session grant; a later always grant made from another
	// session leaves s1's row in place, so s1 sees both.
	if _, err := b.Grant(ctx, FilesystemRead, ScopeSession, "s1", []string{sessionDir}); err != nil {
		t.Fatalf("Grant session: %v", err)
	}
	if _, err := b.Grant(ctx, FilesystemRead, ScopeAlways, "s2", []string{alwaysDir}); err != nil {
		t.Fatalf("Grant always: %v", err)
	}

	// The session grant's paths decide, not the always grant's.
	allowed, _, err := b.Check(ctx, FilesystemRead, "s1", filepath.Join(alwaysDir, "f.txt"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed {
		t.Error("always grant used despite a session grant being present")
	}
	allowed, _, err = b.Check(ctx, FilesystemRead, "s1", filepath.Join(sessionDir, "f.txt"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !allowed {
		t.Error("session grant not honored")
	}
}

func TestAlwaysGrantHasNoSession(t *testing.T) {
	b, store, _ := newTestBroker()
	g, err := b.Grant(context.Background(), WebSearch, ScopeAlways, "s1", nil)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if g.SessionID != "" {
		t.Errorf("always grant SessionID = %q, want empty", g.SessionID)
	}
	// Visible to a different session too.
	allowed, _, err := NewBroker(store, nil, nil).Check(context.Background(), WebSearch, "other", "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !allowed {
		t.Error("always grant not visible to other sessions")
	}
}

func TestGrantReplacesExisting(t *testing.T) {
	b, _, _ := newTestBroker()
	ctx := context.Background()
	first := t.TempDir()
	second := t.TempDir()

	if _, err := b.Grant(ctx, FilesystemWrite, ScopeSession, "s1", []string{first}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if _, err := b.Grant(ctx, FilesystemWrite, ScopeSession, "s1", []string{second}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	grants, err := b.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("got %d grants after replace, want 1", len(grants))
	}
	if grants[0].AllowedPaths[0] != second {
		t.Errorf("surviving grant paths = %v, want %q", grants[0].AllowedPaths, second)
	}
}

func TestRevoke(t *testing.T) {
	b, _, rec := newTestBroker()
	ctx := context.Background()

	if _, err := b.Grant(ctx, ClipboardRead, ScopeSession, "s1", nil); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := b.Revoke(ctx, ClipboardRead, "s1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	allowed, reason, err := b.Check(ctx, ClipboardRead, "s1", "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed || reason != ReasonNoGrant {
		t.Errorf("Check after revoke = (%v, %q)", allowed, reason)
	}

	if got := rec.byType(audit.EventPermissionGrant); len(got) != 1 {
		t.Errorf("permission.grant events = %d, want 1", len(got))
	}
	if got := rec.byType(audit.EventPermissionRevoke); len(got) != 1 {
		t.Errorf("permission.revoke events = %d, want 1", len(got))
	}
}

func TestGrantValidation(t *testing.T) {
	b, _, _ := newTestBroker()
	if _, err := b.Grant(context.Background(), FilesystemRead, ScopeOnce, "", nil); err == nil {
		t.Error("once grant with empty session accepted")
	}
}

func TestParsers(t *testing.T) {
	if _, err := Parse("filesystem.read"); err != nil {
		t.Errorf("Parse(filesystem.read): %v", err)
	}
	if _, err := Parse("filesystem.execute"); err == nil {
		t.Error("Parse accepted unknown permission")
	}
	if _, err := ParseScope("once"); err != nil {
		t.Errorf("ParseScope(once): %v", err)
	}
	if _, err := ParseScope("forever"); err == nil {
		t.Error("ParseScope accepted unknown scope")
	}
}
