// Package http serves the localhost JSON API the desktop client talks
// to. Every mutating route goes through the service layer; the handlers
// only translate between JSON and the domain.
package http

import (
	"log/slog"
	"net/http"

	"github.com/Geo-fs/NeroAI/internal/domain/capture"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
	"github.com/Geo-fs/NeroAI/internal/domain/profile"
	"github.com/Geo-fs/NeroAI/internal/domain/settings"
	"github.com/Geo-fs/NeroAI/internal/domain/workspace"
	"github.com/Geo-fs/NeroAI/internal/service"
)

// Handler bundles the services behind the API routes.
type Handler struct {
	runner     *service.RunnerService
	search     *service.SearchService
	workflows  *service.WorkflowService
	runlog     *service.RunLogService
	broker     *permission.Broker
	audit      *service.AuditService
	settings   *settings.Service
	profiles   profile.Store
	workspaces workspace.Store
	secrets    *service.SecretService
	models     *service.ModelSourceService
	captures   *capture.Store
	metrics    *Metrics
	logger     *slog.Logger
}

// Services groups the dependencies of the handler; nil members disable
// their routes.
type Services struct {
	Runner     *service.RunnerService
	Search     *service.SearchService
	Workflows  *service.WorkflowService
	RunLog     *service.RunLogService
	Broker     *permission.Broker
	Audit      *service.AuditService
	Settings   *settings.Service
	Profiles   profile.Store
	Workspaces workspace.Store
	Secrets    *service.SecretService
	Models     *service.ModelSourceService
	Captures   *capture.Store
}

// NewHandler creates a Handler. metrics and logger may be nil.
func NewHandler(svcs Services, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runner:     svcs.Runner,
		search:     svcs.Search,
		workflows:  svcs.Workflows,
		runlog:     svcs.RunLog,
		broker:     svcs.Broker,
		audit:      svcs.Audit,
		settings:   svcs.Settings,
		profiles:   svcs.Profiles,
		workspaces: svcs.Workspaces,
		secrets:    svcs.Secrets,
		models:     svcs.Models,
		captures:   svcs.Captures,
		metrics:    metrics,
		logger:     logger,
	}
}

// Routes registers every API route on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/tools/run", h.runTool)

	mux.HandleFunc("POST /v1/permissions/grant", h.grantPermission)
	mux.HandleFunc("POST /v1/permissions/revoke", h.revokePermission)
	mux.HandleFunc("GET /v1/permissions", h.listPermissions)

	mux.HandleFunc("POST /v1/search", h.runSearch)
	mux.HandleFunc("POST /v1/workflows/execute", h.executeWorkflow)

	mux.HandleFunc("POST /v1/runs", h.startRun)
	mux.HandleFunc("POST /v1/runs/{id}/finish", h.finishRun)
	mux.HandleFunc("GET /v1/runs/{id}", h.getRun)
	mux.HandleFunc("GET /v1/runs", h.listRuns)
	mux.HandleFunc("GET /v1/audit", h.listAudit)

	mux.HandleFunc("GET /v1/settings", h.getSettings)
	mux.HandleFunc("PUT /v1/settings", h.putSettings)
	mux.HandleFunc("POST /v1/policy/validate", h.validatePolicy)

	mux.HandleFunc("GET /v1/profiles", h.listProfiles)
	mux.HandleFunc("POST /v1/profiles", h.createProfile)
	mux.HandleFunc("GET /v1/profiles/{id}", h.getProfile)
	mux.HandleFunc("PUT /v1/profiles/{id}", h.updateProfile)
	mux.HandleFunc("DELETE /v1/profiles/{id}", h.deleteProfile)
	mux.HandleFunc("POST /v1/profiles/{id}/activate", h.activateProfile)

	mux.HandleFunc("GET /v1/workspaces", h.listWorkspaces)
	mux.HandleFunc("POST /v1/workspaces", h.createWorkspace)
	mux.HandleFunc("GET /v1/workspaces/{id}", h.getWorkspace)
	mux.HandleFunc("PUT /v1/workspaces/{id}", h.updateWorkspace)
	mux.HandleFunc("DELETE /v1/workspaces/{id}", h.deleteWorkspace)
	mux.HandleFunc("POST /v1/workspaces/{id}/activate", h.activateWorkspace)
	mux.HandleFunc("POST /v1/workspaces/deactivate", h.deactivateWorkspace)

	mux.HandleFunc("GET /v1/models/sources", h.listModelSources)
	mux.HandleFunc("POST /v1/models/sources", h.addModelSource)
	mux.HandleFunc("DELETE /v1/models/sources/{id}", h.deleteModelSource)
	mux.HandleFunc("POST /v1/models/sources/{id}/test", h.testModelSource)
	mux.HandleFunc("POST /v1/models/sources/{id}/enabled", h.setModelSourceEnabled)
	mux.HandleFunc("POST /v1/models/usage", h.recordModelUsage)

	mux.HandleFunc("GET /v1/secrets", h.listSecrets)
	mux.HandleFunc("PUT /v1/secrets/{name}", h.putSecret)
	mux.HandleFunc("DELETE /v1/secrets/{name}", h.deleteSecret)

	mux.HandleFunc("POST /v1/captures", h.putCapture)
	mux.HandleFunc("GET /v1/captures/{id}", h.getCapture)

	return mux
}
