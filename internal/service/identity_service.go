package service

import (
	"context"
	"fmt"

	"github.com/Geo-fs/NeroAI/internal/domain/guard"
	"github.com/Geo-fs/NeroAI/internal/domain/profile"
	"github.com/Geo-fs/NeroAI/internal/domain/workspace"
)

// IdentityService loads the active profile and workspace into the
// snapshot the guard evaluates under. Loaded per request so a profile
// switch takes effect on the next call, never mid-decision.
type IdentityService struct {
	profiles   profile.Store
	workspaces workspace.Store
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(profiles profile.Store, workspaces workspace.Store) *IdentityService {
	return &IdentityService{profiles: profiles, workspaces: workspaces}
}

// ActiveIdentity reads the active profile and workspace. Either may be
// absent; absence is not an error.
func (s *IdentityService) ActiveIdentity(ctx context.Context) (guard.Identity, error) {
	var ident guard.Identity

	if s.profiles != nil {
		p, err := s.profiles.Active(ctx)
		if err != nil {
			return guard.Identity{}, fmt.Errorf("load active profile: %w", err)
		}
		if p != nil {
			ident.ProfileName = p.Name
			ident.ProfilePolicy = p.PolicyRules
		}
	}

	if s.workspaces != nil {
		w, err := s.workspaces.Active(ctx)
		if err != nil {
			return guard.Identity{}, fmt.Errorf("load active workspace: %w", err)
		}
		if w != nil {
			ident.HasWorkspace = true
			ident.WorkspaceName = w.Name
			ident.WorkspaceScopes = w.Scopes
			ident.WorkspaceTools = w.Tools
			ident.WorkspacePolicy = w.PolicyRules
		}
	}

	return ident, nil
}

var _ guard.IdentityLoader = (*IdentityService)(nil)
