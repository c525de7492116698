package http

import (
	"errors"
	"net/http"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
	"github.com/Geo-fs/NeroAI/internal/service"
)

type runToolRequest struct {
	Tool      string         `json:"tool" validate:"required"`
	Args      map[string]any `json:"args"`
	SessionID string         `json:"session_id" validate:"required"`
	Mode      string         `json:"mode" validate:"omitempty,oneof=chat workflow"`
	RunID     string         `json:"run_id"`
	Confirmed bool           `json:"confirmed"`
	SafeMode  bool           `json:"safe_mode"`
}

type runToolResponse struct {
	Result      map[string]any `json:"result"`
	ResultHash  string         `json:"result_hash"`
	Quarantined bool           `json:"quarantined,omitempty"`
}

func (h *Handler) runTool(w http.ResponseWriter, r *http.Request) {
	var req runToolRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = run.ModeChat
	}

	res, err := h.runner.Execute(r.Context(), service.ToolCallRequest{
		SessionID: req.SessionID,
		RunID:     req.RunID,
		Mode:      req.Mode,
		Tool:      req.Tool,
		Args:      req.Args,
		Confirmed: req.Confirmed,
		SafeMode:  req.SafeMode,
	})
	h.countToolCall(req.Tool, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runToolResponse{
		Result:      res.Result,
		ResultHash:  res.ResultHash,
		Quarantined: res.Quarantined,
	})
}

// countToolCall feeds the tool-call counters and denial breakdowns.
func (h *Handler) countToolCall(tool string, err error) {
	if h.metrics == nil {
		return
	}
	var denied *fault.PermissionDeniedError
	switch {
	case err == nil:
		h.metrics.ToolCallsTotal.WithLabelValues(tool, "ok").Inc()
	case errors.As(err, &denied):
		h.metrics.ToolCallsTotal.WithLabelValues(tool, "denied").Inc()
		h.metrics.DenialsTotal.WithLabelValues(denied.Kind).Inc()
	case errors.Is(err, fault.ErrLimit):
		h.metrics.ToolCallsTotal.WithLabelValues(tool, "limited").Inc()
		h.metrics.LimitBlocks.Inc()
	default:
		h.metrics.ToolCallsTotal.WithLabelValues(tool, "error").Inc()
	}
}

type searchRequest struct {
	Query       string `json:"query"`
	SessionID   string `json:"session_id" validate:"required"`
	NumResults  int    `json:"num_results" validate:"omitempty,min=1,max=25"`
	Confirmed   bool   `json:"confirmed"`
	SafeMode    bool   `json:"safe_mode"`
	SafeSearch  bool   `json:"safe_search"`
	ManualInput string `json:"manual_input"`
}

func (h *Handler) runSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}

	results, err := h.search.Execute(r.Context(), service.SearchRequest{
		SessionID:   req.SessionID,
		Query:       req.Query,
		NumResults:  req.NumResults,
		Confirmed:   req.Confirmed,
		SafeMode:    req.SafeMode,
		SafeSearch:  req.SafeSearch,
		ManualInput: req.ManualInput,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type executeWorkflowRequest struct {
	Workflow  string         `json:"workflow" validate:"required"`
	SessionID string         `json:"session_id" validate:"required"`
	Inputs    map[string]any `json:"inputs"`
	DryRun    bool           `json:"dry_run"`
	Confirmed bool           `json:"confirmed"`
	SafeMode  bool           `json:"safe_mode"`
}

func (h *Handler) executeWorkflow(w http.ResponseWriter, r *http.Request) {
	var req executeWorkflowRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.workflows.Execute(r.Context(), service.WorkflowRequest{
		SessionID: req.SessionID,
		Workflow:  req.Workflow,
		Inputs:    req.Inputs,
		DryRun:    req.DryRun,
		Confirmed: req.Confirmed,
		SafeMode:  req.SafeMode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
