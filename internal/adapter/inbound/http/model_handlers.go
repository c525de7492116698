package http

import (
	"net/http"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/modelsource"
)

type modelSourceDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url"`
	HasAPIKey bool      `json:"has_api_key"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// The raw key never leaves the vault; clients only learn whether one
// is stored.
func toModelSourceDTO(src modelsource.Source) modelSourceDTO {
	return modelSourceDTO{
		ID:        src.ID,
		Name:      src.Name,
		BaseURL:   src.BaseURL,
		HasAPIKey: src.APIKeyRef != "",
		Enabled:   src.Enabled,
		CreatedAt: src.CreatedAt,
	}
}

func (h *Handler) listModelSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.models.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]modelSourceDTO, 0, len(sources))
	for _, src := range sources {
		out = append(out, toModelSourceDTO(src))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

type addModelSourceRequest struct {
	Name    string `json:"name" validate:"required"`
	BaseURL string `json:"base_url" validate:"required,url"`
	APIKey  string `json:"api_key"`
}

func (h *Handler) addModelSource(w http.ResponseWriter, r *http.Request) {
	var req addModelSourceRequest
	if !decode(w, r, &req) {
		return
	}
	src, err := h.models.Add(r.Context(), req.Name, req.BaseURL, req.APIKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toModelSourceDTO(*src))
}

func (h *Handler) deleteModelSource(w http.ResponseWriter, r *http.Request) {
	if err := h.models.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) testModelSource(w http.ResponseWriter, r *http.Request) {
	result, err := h.models.Test(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) setModelSourceEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.models.SetEnabled(r.Context(), r.PathValue("id"), req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": req.Enabled})
}

type modelUsageRequest struct {
	SourceID  string `json:"source_id" validate:"required"`
	ModelName string `json:"model_name" validate:"required"`
	SessionID string `json:"session_id"`
}

func (h *Handler) recordModelUsage(w http.ResponseWriter, r *http.Request) {
	var req modelUsageRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.models.RecordUsage(r.Context(), req.SourceID, req.ModelName, req.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": true})
}
