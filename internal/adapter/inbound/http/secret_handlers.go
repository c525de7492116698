package http

import (
	"net/http"
	"time"
)

type secretMetaDTO struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Values are never listed back out; only names and timestamps.
func (h *Handler) listSecrets(w http.ResponseWriter, r *http.Request) {
	metas, err := h.secrets.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]secretMetaDTO, 0, len(metas))
	for _, m := range metas {
		out = append(out, secretMetaDTO{Name: m.Name, UpdatedAt: m.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"secrets": out})
}

type putSecretRequest struct {
	Value string `json:"value" validate:"required"`
}

func (h *Handler) putSecret(w http.ResponseWriter, r *http.Request) {
	var req putSecretRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.secrets.Set(r.Context(), r.PathValue("name"), req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": true})
}

func (h *Handler) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := h.secrets.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
