package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/pathsec"
	"github.com/Geo-fs/NeroAI/internal/domain/policy"
	"github.com/Geo-fs/NeroAI/internal/domain/profile"
	"github.com/Geo-fs/NeroAI/internal/domain/workspace"
)

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.settings.All(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": all})
}

type putSettingsRequest struct {
	Set   map[string]any `json:"set"`
	Unset []string       `json:"unset"`
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var req putSettingsRequest
	if !decode(w, r, &req) {
		return
	}
	for key, value := range req.Set {
		if err := h.settings.Set(r.Context(), key, value); err != nil {
			writeError(w, r, err)
			return
		}
	}
	for _, key := range req.Unset {
		if err := h.settings.Unset(r.Context(), key); err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.getSettings(w, r)
}

type validatePolicyRequest struct {
	Rules string `json:"rules" validate:"required"`
}

func (h *Handler) validatePolicy(w http.ResponseWriter, r *http.Request) {
	var req validatePolicyRequest
	if !decode(w, r, &req) {
		return
	}
	parsed := policy.Parse(req.Rules)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":        len(parsed.Errors) == 0,
		"errors":       parsed.Errors,
		"effect_rules": len(parsed.Effects),
		"limit_rules":  len(parsed.Limits),
	})
}

type profileRequest struct {
	Name        string         `json:"name" validate:"required"`
	Settings    map[string]any `json:"settings"`
	PolicyRules string         `json:"policy_rules"`
}

type profileDTO struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Version     int              `json:"version"`
	IsActive    bool             `json:"is_active"`
	Settings    map[string]any   `json:"settings,omitempty"`
	PolicyRules string           `json:"policy_rules,omitempty"`
	History     []map[string]any `json:"history,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func toProfileDTO(p profile.Profile) profileDTO {
	return profileDTO{
		ID:          p.ID,
		Name:        p.Name,
		Version:     p.Version,
		IsActive:    p.IsActive,
		Settings:    p.Settings,
		PolicyRules: p.PolicyRules,
		History:     p.History,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// validatePolicyRules rejects profile or workspace writes carrying an
// unparseable policy, so broken rules never reach the guard.
func validatePolicyRules(w http.ResponseWriter, rules string) bool {
	if rules == "" {
		return true
	}
	if parsed := policy.Parse(rules); len(parsed.Errors) > 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid policy rules: " + parsed.Errors[0]})
		return false
	}
	return true
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]profileDTO, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	if !validatePolicyRules(w, req.PolicyRules) {
		return
	}
	now := time.Now().UTC()
	p := profile.Profile{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Version:     1,
		Settings:    req.Settings,
		PolicyRules: req.PolicyRules,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.profiles.Create(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(p))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*p))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	if !validatePolicyRules(w, req.PolicyRules) {
		return
	}
	id := r.PathValue("id")
	p := profile.Profile{
		ID:          id,
		Name:        req.Name,
		Settings:    req.Settings,
		PolicyRules: req.PolicyRules,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.profiles.Update(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*updated))
}

func (h *Handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) activateProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Activate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activated": true})
}

type workspaceRequest struct {
	Name             string         `json:"name" validate:"required"`
	Scopes           []string       `json:"scopes"`
	Tools            []string       `json:"tools"`
	Settings         map[string]any `json:"settings"`
	PolicyRules      string         `json:"policy_rules"`
	DefaultProfileID string         `json:"default_profile_id"`
}

type workspaceDTO struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	IsActive         bool           `json:"is_active"`
	Scopes           []string       `json:"scopes,omitempty"`
	Tools            []string       `json:"tools,omitempty"`
	Settings         map[string]any `json:"settings,omitempty"`
	PolicyRules      string         `json:"policy_rules,omitempty"`
	DefaultProfileID string         `json:"default_profile_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func toWorkspaceDTO(ws workspace.Workspace) workspaceDTO {
	return workspaceDTO{
		ID:               ws.ID,
		Name:             ws.Name,
		IsActive:         ws.IsActive,
		Scopes:           ws.Scopes,
		Tools:            ws.Tools,
		Settings:         ws.Settings,
		PolicyRules:      ws.PolicyRules,
		DefaultProfileID: ws.DefaultProfileID,
		CreatedAt:        ws.CreatedAt,
		UpdatedAt:        ws.UpdatedAt,
	}
}

// normalizeScopes resolves workspace scope paths to absolute form so the
// guard's containment checks compare like with like.
func normalizeScopes(scopes []string) ([]string, error) {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		norm, err := pathsec.Normalize(s)
		if err != nil {
			return nil, fault.Validation("invalid scope %q: %v", s, err)
		}
		out = append(out, norm)
	}
	return out, nil
}

func (h *Handler) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.workspaces.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]workspaceDTO, 0, len(workspaces))
	for _, ws := range workspaces {
		out = append(out, toWorkspaceDTO(ws))
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": out})
}

func (h *Handler) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if !decode(w, r, &req) {
		return
	}
	if !validatePolicyRules(w, req.PolicyRules) {
		return
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := time.Now().UTC()
	ws := workspace.Workspace{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Scopes:           scopes,
		Tools:            req.Tools,
		Settings:         req.Settings,
		PolicyRules:      req.PolicyRules,
		DefaultProfileID: req.DefaultProfileID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.workspaces.Create(r.Context(), ws); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkspaceDTO(ws))
}

func (h *Handler) getWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspaces.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceDTO(*ws))
}

func (h *Handler) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if !decode(w, r, &req) {
		return
	}
	if !validatePolicyRules(w, req.PolicyRules) {
		return
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	ws := workspace.Workspace{
		ID:               id,
		Name:             req.Name,
		Scopes:           scopes,
		Tools:            req.Tools,
		Settings:         req.Settings,
		PolicyRules:      req.PolicyRules,
		DefaultProfileID: req.DefaultProfileID,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := h.workspaces.Update(r.Context(), ws); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.workspaces.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceDTO(*updated))
}

func (h *Handler) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.workspaces.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) activateWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.workspaces.Activate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activated": true})
}

func (h *Handler) deactivateWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.workspaces.Deactivate(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}
