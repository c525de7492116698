package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/limits"
	"github.com/Geo-fs/NeroAI/internal/domain/profile"
	"github.com/Geo-fs/NeroAI/internal/domain/workspace"
)

// Snapshot is the effective settings for one request. It is assembled on
// demand and must not be held across requests.
type Snapshot struct {
	PrivacyMode            bool
	AllowQueryTextLogging  bool
	VerboseLogging         bool
	RedactAuditPayloads    bool
	QuarantineMode         bool
	WritePreviewDefault    bool
	DefaultSearchProvider  string
	MaxToolCallsPerMessage int
	ToolCallsPerMinute     int
	MaxFileReadsPerRun     int
	MaxFileReadBytesPerRun int64
	MaxRunSeconds          int
	WorkerTimeoutSeconds   int
	WorkerOutputCapBytes   int
}

// Budgets extracts the limiter thresholds from the snapshot.
func (s Snapshot) Budgets() limits.Budgets {
	return limits.Budgets{
		MaxToolCallsPerMessage: s.MaxToolCallsPerMessage,
		ToolCallsPerMinute:     s.ToolCallsPerMinute,
		MaxFileReadsPerRun:     s.MaxFileReadsPerRun,
		MaxFileReadBytesPerRun: s.MaxFileReadBytesPerRun,
		MaxRunSeconds:          s.MaxRunSeconds,
	}
}

// Store persists explicit app-level setting writes.
// Interface owned by the domain; implemented by the sqlite adapter.
type Store interface {
	// All returns every persisted key→value pair.
	All(ctx context.Context) (map[string]any, error)
	// Set upserts one key.
	Set(ctx context.Context, key string, value any) error
	// Unset removes one key, falling back to the default.
	Unset(ctx context.Context, key string) error
}

// Service merges the settings layers into effective snapshots.
type Service struct {
	store      Store
	profiles   profile.Store
	workspaces workspace.Store
	logger     *slog.Logger
}

// NewService creates a settings service. profiles and workspaces may be
// nil when no identity layers exist (tests); logger may be nil.
func NewService(store Store, profiles profile.Store, workspaces workspace.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, profiles: profiles, workspaces: workspaces, logger: logger}
}

// Set validates and persists one app-level setting.
func (s *Service) Set(ctx context.Context, key string, value any) error {
	coerced, err := Coerce(key, value)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, key, coerced); err != nil {
		return fmt.Errorf("persist setting: %w", err)
	}
	s.logger.Info("setting updated", "key", key)
	return nil
}

// Unset removes one app-level setting, restoring the default.
func (s *Service) Unset(ctx context.Context, key string) error {
	if _, ok := lookup(key); !ok {
		return fault.Validation("unknown setting %q", key)
	}
	if err := s.store.Unset(ctx, key); err != nil {
		return fmt.Errorf("remove setting: %w", err)
	}
	s.logger.Info("setting reset to default", "key", key)
	return nil
}

// All returns the merged app-level settings (defaults plus persisted
// writes) without identity overlays.
func (s *Service) All(ctx context.Context) (map[string]any, error) {
	merged := Defaults()
	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	applyLayer(merged, stored)
	enforceInvariants(merged)
	return merged, nil
}

// Effective assembles the request-scoped snapshot: registry defaults,
// persisted app settings, active profile settings, active workspace
// overrides, in that order. The privacy invariant is enforced last.
func (s *Service) Effective(ctx context.Context) (Snapshot, error) {
	merged, err := s.All(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if s.profiles != nil {
		p, err := s.profiles.Active(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load active profile: %w", err)
		}
		if p != nil {
			applyLayer(merged, p.Settings)
		}
	}
	if s.workspaces != nil {
		w, err := s.workspaces.Active(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load active workspace: %w", err)
		}
		if w != nil {
			applyLayer(merged, w.Settings)
		}
	}
	enforceInvariants(merged)
	return snapshotFromMap(merged), nil
}

// applyLayer overlays only registry-known keys whose values coerce to
// the registered kind; junk in a stored layer cannot widen the schema.
func applyLayer(base map[string]any, layer map[string]any) {
	for k, v := range layer {
		coerced, err := Coerce(k, v)
		if err != nil {
			continue
		}
		base[k] = coerced
	}
}

// enforceInvariants applies cross-key rules: privacy mode forces query
// text logging off.
func enforceInvariants(m map[string]any) {
	if asBool(m, KeyPrivacyMode) {
		m[KeyAllowQueryTextLogging] = false
	}
}

func snapshotFromMap(m map[string]any) Snapshot {
	return Snapshot{
		PrivacyMode:            asBool(m, KeyPrivacyMode),
		AllowQueryTextLogging:  asBool(m, KeyAllowQueryTextLogging),
		VerboseLogging:         asBool(m, KeyVerboseLogging),
		RedactAuditPayloads:    asBool(m, KeyRedactAuditPayloads),
		QuarantineMode:         asBool(m, KeyQuarantineMode),
		WritePreviewDefault:    asBool(m, KeyWritePreviewDefault),
		DefaultSearchProvider:  asString(m, KeyDefaultSearchProvider),
		MaxToolCallsPerMessage: asInt(m, KeyMaxToolCallsPerMessage),
		ToolCallsPerMinute:     asInt(m, KeyToolCallsPerMinute),
		MaxFileReadsPerRun:     asInt(m, KeyMaxFileReadsPerRun),
		MaxFileReadBytesPerRun: int64(asInt(m, KeyMaxFileReadBytes)),
		MaxRunSeconds:          asInt(m, KeyMaxRunSeconds),
		WorkerTimeoutSeconds:   asInt(m, KeyWorkerTimeoutSeconds),
		WorkerOutputCapBytes:   asInt(m, KeyWorkerOutputCapBytes),
	}
}
