package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/modelsource"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
	"github.com/Geo-fs/NeroAI/internal/domain/profile"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
	"github.com/Geo-fs/NeroAI/internal/domain/workspace"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nero.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenAppliesSchemaIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nero.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	_ = db.Close()
}

func TestGrantStoreReplaceAndVisible(t *testing.T) {
	ctx := context.Background()
	store := NewGrantStore(openTestDB(t))

	first := permission.Grant{
		ID:           uuid.NewString(),
		Permission:   permission.FilesystemRead,
		Scope:        permission.ScopeSession,
		SessionID:    "s1",
		AllowedPaths: []string{"/tmp/work"},
	}
	if err := store.Replace(ctx, first, "s1"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	// Replacing the same (permission, session) leaves exactly one row.
	second := first
	second.ID = uuid.NewString()
	second.Scope = permission.ScopeOnce
	if err := store.Replace(ctx, second, "s1"); err != nil {
		t.Fatalf("Replace() second error = %v", err)
	}

	grants, err := store.Visible(ctx, "s1")
	if err != nil {
		t.Fatalf("Visible() error = %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("Visible() returned %d grants, want 1", len(grants))
	}
	got := grants[0]
	if got.ID != second.ID || got.Scope != permission.ScopeOnce {
		t.Errorf("Visible() = %+v, want replacement row", got)
	}
	if len(got.AllowedPaths) != 1 || got.AllowedPaths[0] != "/tmp/work" {
		t.Errorf("AllowedPaths = %v, want [/tmp/work]", got.AllowedPaths)
	}

	// Always grants (null session) are visible to every session.
	always := permission.Grant{
		ID:         uuid.NewString(),
		Permission: permission.WebSearch,
		Scope:      permission.ScopeAlways,
	}
	if err := store.Replace(ctx, always, ""); err != nil {
		t.Fatalf("Replace() always error = %v", err)
	}
	grants, err = store.Visible(ctx, "other-session")
	if err != nil {
		t.Fatalf("Visible() error = %v", err)
	}
	if len(grants) != 1 || grants[0].Permission != permission.WebSearch {
		t.Errorf("Visible(other) = %+v, want only the always grant", grants)
	}
}

func TestGrantStoreDecideConsumesNominatedRow(t *testing.T) {
	ctx := context.Background()
	store := NewGrantStore(openTestDB(t))

	once := permission.Grant{
		ID:         uuid.NewString(),
		Permission: permission.FilesystemWrite,
		Scope:      permission.ScopeOnce,
		SessionID:  "s1",
	}
	if err := store.Replace(ctx, once, "s1"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	var seen int
	err := store.Decide(ctx, permission.FilesystemWrite, "s1", func(candidates []permission.Grant) string {
		seen = len(candidates)
		if len(candidates) == 0 {
			return ""
		}
		return candidates[0].ID
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if seen != 1 {
		t.Fatalf("Decide() saw %d candidates, want 1", seen)
	}

	// The once grant is gone after consumption.
	grants, err := store.Visible(ctx, "s1")
	if err != nil {
		t.Fatalf("Visible() error = %v", err)
	}
	if len(grants) != 0 {
		t.Errorf("Visible() after consume = %+v, want none", grants)
	}
}

func TestGrantStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewGrantStore(openTestDB(t))

	g := permission.Grant{
		ID:         uuid.NewString(),
		Permission: permission.ScreenCapture,
		Scope:      permission.ScopeAlways,
	}
	if err := store.Replace(ctx, g, ""); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := store.Delete(ctx, permission.ScreenCapture, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	grants, err := store.Visible(ctx, "s1")
	if err != nil {
		t.Fatalf("Visible() error = %v", err)
	}
	if len(grants) != 0 {
		t.Errorf("Visible() after delete = %+v, want none", grants)
	}
}

func TestAuditStoreAppendAndFilter(t *testing.T) {
	ctx := context.Background()
	store := NewAuditStore(openTestDB(t))

	records := []audit.Record{
		{
			ID:        uuid.NewString(),
			SessionID: "s1",
			EventType: audit.EventToolCall,
			Summary:   "tool call: file_read",
			Payload:   map[string]any{"tool": "file_read", "success": true},
		},
		{
			ID:        uuid.NewString(),
			SessionID: "s2",
			EventType: audit.EventPermissionDenied,
			Summary:   "denied: web.search",
			Payload:   map[string]any{},
		},
	}
	if err := store.Append(ctx, records...); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.List(ctx, audit.Filter{SessionID: "s1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List(session=s1) returned %d records, want 1", len(got))
	}
	if got[0].EventType != audit.EventToolCall {
		t.Errorf("EventType = %q, want %q", got[0].EventType, audit.EventToolCall)
	}
	if v, ok := got[0].Payload["tool"]; !ok || v != "file_read" {
		t.Errorf("Payload[tool] = %v, want file_read", v)
	}

	got, err = store.List(ctx, audit.Filter{EventType: audit.EventPermissionDenied})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "s2" {
		t.Errorf("List(type=denied) = %+v, want the s2 record", got)
	}
}

func TestRunStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore(openTestDB(t))

	r := run.Run{
		ID:        uuid.NewString(),
		SessionID: "s1",
		Mode:      run.ModeChat,
		InputHash: "abc123",
	}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, evType := range []string{"tool.call", "tool.result"} {
		ev := run.Event{
			ID:        uuid.NewString(),
			RunID:     r.ID,
			EventType: evType,
			Payload:   map[string]any{"tool": "file_read"},
		}
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent(%s) error = %v", evType, err)
		}
	}

	if err := store.Finish(ctx, r.ID, 1234); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.DurationMS == nil || *got.DurationMS != 1234 {
		t.Errorf("DurationMS = %v, want 1234", got.DurationMS)
	}
	if got.InputText != "" {
		t.Errorf("InputText = %q, want empty (not stored)", got.InputText)
	}

	events, err := store.Events(ctx, r.ID)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Events() returned %d, want 2", len(events))
	}
	if events[0].EventType != "tool.call" || events[1].EventType != "tool.result" {
		t.Errorf("event order = [%s %s], want [tool.call tool.result]",
			events[0].EventType, events[1].EventType)
	}

	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("List() returned %d runs, want 1", len(runs))
	}
}

func TestRunStoreMissingRun(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore(openTestDB(t))

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.Finish(ctx, "nope", 1); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Finish(missing) error = %v, want ErrNotFound", err)
	}
}

func TestProfileStoreUpdateBumpsVersionAndHistory(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(openTestDB(t))

	p := profile.Profile{
		ID:       uuid.NewString(),
		Name:     "focus",
		Settings: map[string]any{"verbose_logging": false},
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	p.Settings = map[string]any{"verbose_logging": true}
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if len(got.History) != 1 {
		t.Fatalf("History length = %d, want 1", len(got.History))
	}
	if v, ok := got.History[0]["verbose_logging"]; !ok || v != false {
		t.Errorf("History[0] = %v, want the prior settings", got.History[0])
	}
}

func TestProfileStoreHistoryTrimmed(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(openTestDB(t))

	p := profile.Profile{
		ID:       uuid.NewString(),
		Name:     "busy",
		Settings: map[string]any{"n": float64(0)},
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i := 1; i <= profile.HistoryLimit+3; i++ {
		p.Settings = map[string]any{"n": float64(i)}
		if err := store.Update(ctx, p); err != nil {
			t.Fatalf("Update() #%d error = %v", i, err)
		}
	}
	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.History) != profile.HistoryLimit {
		t.Errorf("History length = %d, want %d", len(got.History), profile.HistoryLimit)
	}
	// Newest snapshot first.
	if v := got.History[0]["n"]; v != float64(profile.HistoryLimit+2) {
		t.Errorf("History[0][n] = %v, want %v", v, float64(profile.HistoryLimit+2))
	}
}

func TestProfileStoreActivateIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(openTestDB(t))

	a := profile.Profile{ID: uuid.NewString(), Name: "a", Settings: map[string]any{}}
	b := profile.Profile{ID: uuid.NewString(), Name: "b", Settings: map[string]any{}}
	for _, p := range []profile.Profile{a, b} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) error = %v", p.Name, err)
		}
	}

	if err := store.Activate(ctx, a.ID); err != nil {
		t.Fatalf("Activate(a) error = %v", err)
	}
	if err := store.Activate(ctx, b.ID); err != nil {
		t.Fatalf("Activate(b) error = %v", err)
	}

	active, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if active == nil || active.ID != b.ID {
		t.Fatalf("Active() = %+v, want profile b", active)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var activeCount int
	for _, p := range all {
		if p.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("active profiles = %d, want 1", activeCount)
	}

	if err := store.Activate(ctx, "nope"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Activate(missing) error = %v, want ErrNotFound", err)
	}
}

func TestWorkspaceStoreActivateWithDefaultProfile(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	profiles := NewProfileStore(db)
	workspaces := NewWorkspaceStore(db)

	p := profile.Profile{ID: uuid.NewString(), Name: "research", Settings: map[string]any{}}
	if err := profiles.Create(ctx, p); err != nil {
		t.Fatalf("Create(profile) error = %v", err)
	}
	w := workspace.Workspace{
		ID:               uuid.NewString(),
		Name:             "papers",
		Scopes:           []string{"/home/user/papers"},
		Tools:            []string{"file_read"},
		Settings:         map[string]any{},
		DefaultProfileID: p.ID,
	}
	if err := workspaces.Create(ctx, w); err != nil {
		t.Fatalf("Create(workspace) error = %v", err)
	}

	if err := workspaces.Activate(ctx, w.ID); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	activeW, err := workspaces.Active(ctx)
	if err != nil {
		t.Fatalf("Active(workspace) error = %v", err)
	}
	if activeW == nil || activeW.ID != w.ID {
		t.Fatalf("Active(workspace) = %+v, want the activated one", activeW)
	}
	if len(activeW.Scopes) != 1 || activeW.Scopes[0] != "/home/user/papers" {
		t.Errorf("Scopes = %v, want [/home/user/papers]", activeW.Scopes)
	}

	activeP, err := profiles.Active(ctx)
	if err != nil {
		t.Fatalf("Active(profile) error = %v", err)
	}
	if activeP == nil || activeP.ID != p.ID {
		t.Errorf("Active(profile) = %+v, want the default profile", activeP)
	}

	if err := workspaces.Deactivate(ctx); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	activeW, err = workspaces.Active(ctx)
	if err != nil {
		t.Fatalf("Active() after deactivate error = %v", err)
	}
	if activeW != nil {
		t.Errorf("Active() after deactivate = %+v, want nil", activeW)
	}
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSettingsStore(openTestDB(t))

	if err := store.Set(ctx, "privacy_mode", false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "max_tool_calls_per_message", 12); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// Upsert overwrites.
	if err := store.Set(ctx, "privacy_mode", true); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if v := all["privacy_mode"]; v != true {
		t.Errorf("privacy_mode = %v, want true", v)
	}
	if v := all["max_tool_calls_per_message"]; v != float64(12) {
		t.Errorf("max_tool_calls_per_message = %v, want 12", v)
	}

	if err := store.Unset(ctx, "privacy_mode"); err != nil {
		t.Fatalf("Unset() error = %v", err)
	}
	all, err = store.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if _, ok := all["privacy_mode"]; ok {
		t.Errorf("privacy_mode still present after Unset()")
	}
}

func TestSecretStoreUpsertAndList(t *testing.T) {
	ctx := context.Background()
	store := NewSecretStore(openTestDB(t))

	if err := store.Put(ctx, "openai_api_key", "v1:blob1"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "openai_api_key", "v1:blob2"); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	blob, err := store.Get(ctx, "openai_api_key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if blob != "v1:blob2" {
		t.Errorf("Get() = %q, want latest blob", blob)
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 1 || metas[0].Name != "openai_api_key" {
		t.Errorf("List() = %+v, want one entry", metas)
	}

	if err := store.Delete(ctx, "openai_api_key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "openai_api_key"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestModelSourceStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewModelSourceStore(openTestDB(t))

	src := modelsource.Source{
		ID:        uuid.NewString(),
		Name:      "local-ollama",
		BaseURL:   "http://127.0.0.1:11434/v1",
		APIKeyRef: "",
		Enabled:   true,
	}
	if err := store.Create(ctx, src); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, src.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.BaseURL != src.BaseURL || !got.Enabled {
		t.Errorf("Get() = %+v, want stored source", got)
	}

	if err := store.SetEnabled(ctx, src.ID, false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	got, err = store.Get(ctx, src.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Enabled {
		t.Errorf("Enabled = true after SetEnabled(false)")
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() returned %d, want 1", len(list))
	}

	if err := store.Delete(ctx, src.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, src.ID); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}
