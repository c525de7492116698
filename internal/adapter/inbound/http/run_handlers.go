package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
)

type startRunRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	Mode          string `json:"mode" validate:"required,oneof=chat workflow"`
	InputText     string `json:"input_text"`
	ModelSourceID string `json:"model_source_id"`
	ModelName     string `json:"model_name"`
}

type runDTO struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Mode          string    `json:"mode"`
	InputHash     string    `json:"input_hash"`
	InputText     string    `json:"input_text,omitempty"`
	ModelSourceID string    `json:"model_source_id,omitempty"`
	ModelName     string    `json:"model_name,omitempty"`
	DurationMS    *int64    `json:"duration_ms,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type runEventDTO struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toRunDTO(r run.Run) runDTO {
	return runDTO{
		ID:            r.ID,
		SessionID:     r.SessionID,
		Mode:          r.Mode,
		InputHash:     r.InputHash,
		InputText:     r.InputText,
		ModelSourceID: r.ModelSourceID,
		ModelName:     r.ModelName,
		DurationMS:    r.DurationMS,
		CreatedAt:     r.CreatedAt,
	}
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if !decode(w, r, &req) {
		return
	}
	created, err := h.runlog.StartRun(r.Context(), req.SessionID, req.Mode, req.InputText, req.ModelSourceID, req.ModelName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(*created))
}

type finishRunRequest struct {
	DurationMS int64 `json:"duration_ms" validate:"min=0"`
}

func (h *Handler) finishRun(w http.ResponseWriter, r *http.Request) {
	var req finishRunRequest
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := h.runlog.FinishRun(r.Context(), id, time.Duration(req.DurationMS)*time.Millisecond); err != nil {
		writeError(w, r, err)
		return
	}
	// The run's budget accounting dies with the run.
	h.runner.EndRun(id)
	writeJSON(w, http.StatusOK, map[string]any{"finished": true})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	detail, err := h.runlog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	events := make([]runEventDTO, 0, len(detail.Events))
	for _, ev := range detail.Events {
		events = append(events, runEventDTO{
			ID:        ev.ID,
			EventType: ev.EventType,
			Payload:   ev.Payload,
			CreatedAt: ev.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":    toRunDTO(detail.Run),
		"events": events,
	})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.runlog.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, item := range runs {
		out = append(out, toRunDTO(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

type auditDTO struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	EventType string         `json:"event_type"`
	Summary   string         `json:"summary"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	records, err := h.audit.List(r.Context(), audit.Filter{
		SessionID: q.Get("session_id"),
		EventType: q.Get("event_type"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]auditDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, auditDTO{
			ID:        rec.ID,
			SessionID: rec.SessionID,
			EventType: rec.EventType,
			Summary:   rec.Summary,
			Payload:   rec.Payload,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}
