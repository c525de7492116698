package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/pathsec"
)

// Service wraps the store with validation and scope normalization.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a workspace service. logger may be nil.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// normalizeScopes expands and absolutizes every scope path, the same
// normalization grants get, so containment comparisons see one form.
func normalizeScopes(scopes []string) ([]string, error) {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		np, err := pathsec.Normalize(s)
		if err != nil {
			return nil, fault.Validation("invalid scope path %q: %v", s, err)
		}
		out = append(out, np)
	}
	return out, nil
}

// Create validates and stores a new workspace.
func (s *Service) Create(ctx context.Context, w Workspace) (*Workspace, error) {
	if strings.TrimSpace(w.Name) == "" {
		return nil, fault.Validation("workspace name is required")
	}
	scopes, err := normalizeScopes(w.Scopes)
	if err != nil {
		return nil, err
	}
	w.ID = uuid.NewString()
	w.IsActive = false
	w.Scopes = scopes
	if w.Settings == nil {
		w.Settings = map[string]any{}
	}
	if err := s.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	s.logger.Info("workspace created", "workspace", w.Name, "scopes", len(scopes))
	return &w, nil
}

// Update replaces the workspace's mutable fields.
func (s *Service) Update(ctx context.Context, w Workspace) (*Workspace, error) {
	existing, err := s.store.Get(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	scopes, err := normalizeScopes(w.Scopes)
	if err != nil {
		return nil, err
	}
	existing.Name = w.Name
	existing.Scopes = scopes
	existing.Tools = w.Tools
	existing.Settings = w.Settings
	existing.PolicyRules = w.PolicyRules
	existing.DefaultProfileID = w.DefaultProfileID
	if err := s.store.Update(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update workspace: %w", err)
	}
	return s.store.Get(ctx, w.ID)
}

// Delete removes a workspace.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Get returns a workspace by id.
func (s *Service) Get(ctx context.Context, id string) (*Workspace, error) {
	return s.store.Get(ctx, id)
}

// List returns all workspaces.
func (s *Service) List(ctx context.Context) ([]Workspace, error) {
	return s.store.List(ctx)
}

// Activate makes the workspace the single active one; its default
// profile, when set, is activated in the same transaction.
func (s *Service) Activate(ctx context.Context, id string) error {
	if err := s.store.Activate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("workspace activated", "workspace_id", id)
	return nil
}

// Deactivate leaves no workspace active.
func (s *Service) Deactivate(ctx context.Context) error {
	return s.store.Deactivate(ctx)
}

// Active returns the active workspace, or nil when none is.
func (s *Service) Active(ctx context.Context) (*Workspace, error) {
	return s.store.Active(ctx)
}
