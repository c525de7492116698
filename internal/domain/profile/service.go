package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// Service wraps the store with validation and id assignment.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a profile service. logger may be nil.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Create validates and stores a new profile.
func (s *Service) Create(ctx context.Context, name string, settings map[string]any, policyRules string) (*Profile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fault.Validation("profile name is required")
	}
	if settings == nil {
		settings = map[string]any{}
	}
	p := Profile{
		ID:          uuid.NewString(),
		Name:        name,
		Version:     1,
		Settings:    settings,
		PolicyRules: policyRules,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info("profile created", "profile", name)
	return &p, nil
}

// Update replaces settings and policy text. The store snapshots the
// prior settings into history and trims it.
func (s *Service) Update(ctx context.Context, id string, settings map[string]any, policyRules string) (*Profile, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Settings = settings
	existing.PolicyRules = policyRules
	if err := s.store.Update(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.store.Get(ctx, id)
}

// Delete removes a profile.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	return s.store.Get(ctx, id)
}

// List returns all profiles.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.store.List(ctx)
}

// Activate makes the profile the single active one.
func (s *Service) Activate(ctx context.Context, id string) error {
	if err := s.store.Activate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("profile activated", "profile_id", id)
	return nil
}

// Active returns the active profile, or nil when none is.
func (s *Service) Active(ctx context.Context) (*Profile, error) {
	return s.store.Active(ctx)
}
