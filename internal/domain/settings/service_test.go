package settings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/profile"
	"github.com/Geo-fs/NeroAI/internal/domain/workspace"
)

// mockStore is a mutex-guarded in-memory settings store.
type mockStore struct {
	mu     sync.Mutex
	values map[string]any
}

func newMockStore() *mockStore {
	return &mockStore{values: make(map[string]any)}
}

func (m *mockStore) All(_ context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockStore) Unset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// mockProfiles serves a single active profile.
type mockProfiles struct {
	profile.Store
	active *profile.Profile
}

func (m *mockProfiles) Active(context.Context) (*profile.Profile, error) {
	return m.active, nil
}

// mockWorkspaces serves a single active workspace.
type mockWorkspaces struct {
	workspace.Store
	active *workspace.Workspace
}

func (m *mockWorkspaces) Active(context.Context) (*workspace.Workspace, error) {
	return m.active, nil
}

func TestEffectiveDefaults(t *testing.T) {
	svc := NewService(newMockStore(), nil, nil, nil)
	snap, err := svc.Effective(context.Background())
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if !snap.PrivacyMode {
		t.Error("privacy_mode should default on")
	}
	if snap.AllowQueryTextLogging {
		t.Error("allow_query_text_logging should default off")
	}
	if snap.MaxToolCallsPerMessage != 3 {
		t.Errorf("max_tool_calls_per_message: got %d want 3", snap.MaxToolCallsPerMessage)
	}
	if snap.WorkerOutputCapBytes != 262_144 {
		t.Errorf("worker_output_cap_bytes: got %d want 262144", snap.WorkerOutputCapBytes)
	}
}

func TestPrivacyModeForcesQueryLoggingOff(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()

	if err := svc.Set(ctx, KeyAllowQueryTextLogging, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap, err := svc.Effective(ctx)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if snap.AllowQueryTextLogging {
		t.Fatal("privacy mode must force allow_query_text_logging=false")
	}

	// With privacy off the explicit value survives.
	if err := svc.Set(ctx, KeyPrivacyMode, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap, err = svc.Effective(ctx)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if !snap.AllowQueryTextLogging {
		t.Fatal("explicit allow_query_text_logging lost with privacy off")
	}
}

func TestSetRejectsUnknownKeyAndWrongType(t *testing.T) {
	svc := NewService(newMockStore(), nil, nil, nil)
	ctx := context.Background()

	if err := svc.Set(ctx, "no_such_key", true); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("unknown key: want validation error, got %v", err)
	}
	if err := svc.Set(ctx, KeyMaxRunSeconds, "soon"); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("wrong type: want validation error, got %v", err)
	}
}

func TestEffectiveLayering(t *testing.T) {
	store := newMockStore()
	profiles := &mockProfiles{active: &profile.Profile{
		Name:     "Focus",
		Settings: map[string]any{KeyMaxToolCallsPerMessage: 5},
	}}
	workspaces := &mockWorkspaces{active: &workspace.Workspace{
		Name:     "Docs",
		Settings: map[string]any{KeyMaxToolCallsPerMessage: 2, KeyQuarantineMode: true},
	}}
	svc := NewService(store, profiles, workspaces, nil)

	snap, err := svc.Effective(context.Background())
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if snap.MaxToolCallsPerMessage != 2 {
		t.Errorf("workspace override should win: got %d want 2", snap.MaxToolCallsPerMessage)
	}
	if !snap.QuarantineMode {
		t.Error("workspace quarantine_mode override lost")
	}

	// Without a workspace the profile layer applies.
	workspaces.active = nil
	snap, err = svc.Effective(context.Background())
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if snap.MaxToolCallsPerMessage != 5 {
		t.Errorf("profile override should apply: got %d want 5", snap.MaxToolCallsPerMessage)
	}
}

func TestLayerIgnoresUnknownAndMalformed(t *testing.T) {
	profiles := &mockProfiles{active: &profile.Profile{
		Name: "Odd",
		Settings: map[string]any{
			"unknown_key":    true,
			KeyMaxRunSeconds: "not a number",
			KeyToolCallsPerMinute: float64(9), // JSON-decoded int
		},
	}}
	svc := NewService(newMockStore(), profiles, nil, nil)

	snap, err := svc.Effective(context.Background())
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if snap.MaxRunSeconds != 120 {
		t.Errorf("malformed override must not apply: got %d", snap.MaxRunSeconds)
	}
	if snap.ToolCallsPerMinute != 9 {
		t.Errorf("float64 int should coerce: got %d", snap.ToolCallsPerMinute)
	}
}
