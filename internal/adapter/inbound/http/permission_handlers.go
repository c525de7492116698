package http

import (
	"net/http"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

type grantRequest struct {
	Permission   string   `json:"permission" validate:"required"`
	Scope        string   `json:"scope" validate:"required,oneof=once session always"`
	SessionID    string   `json:"session_id"`
	AllowedPaths []string `json:"allowed_paths"`
}

type grantDTO struct {
	ID           string    `json:"id"`
	Permission   string    `json:"permission"`
	Scope        string    `json:"scope"`
	SessionID    string    `json:"session_id,omitempty"`
	AllowedPaths []string  `json:"allowed_paths,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toGrantDTO(g permission.Grant) grantDTO {
	return grantDTO{
		ID:           g.ID,
		Permission:   string(g.Permission),
		Scope:        string(g.Scope),
		SessionID:    g.SessionID,
		AllowedPaths: g.AllowedPaths,
		CreatedAt:    g.CreatedAt,
	}
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !decode(w, r, &req) {
		return
	}
	perm, err := permission.Parse(req.Permission)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scope, err := permission.ParseScope(req.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.broker.Grant(r.Context(), perm, scope, req.SessionID, req.AllowedPaths)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantDTO(*g))
}

type revokeRequest struct {
	Permission string `json:"permission" validate:"required"`
	SessionID  string `json:"session_id"`
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !decode(w, r, &req) {
		return
	}
	perm, err := permission.Parse(req.Permission)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.broker.Revoke(r.Context(), perm, req.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	grants, err := h.broker.List(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]grantDTO, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantDTO(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}
