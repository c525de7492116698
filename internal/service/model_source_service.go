package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/modelsource"
)

// ModelProber checks whether a model endpoint answers.
type ModelProber interface {
	Probe(ctx context.Context, baseURL, apiKey string) ([]string, error)
}

// ProbeResult is the outcome of testing a model source.
type ProbeResult struct {
	Reachable bool     `json:"reachable"`
	Models    []string `json:"models,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ModelSourceService manages the registry of model endpoints. API keys
// go through the secret vault; the sources table only holds a
// reference.
type ModelSourceService struct {
	store   modelsource.Store
	secrets *SecretService
	prober  ModelProber
	audit   AuditRecorder
	logger  *slog.Logger
}

// NewModelSourceService creates a ModelSourceService. logger may be nil.
func NewModelSourceService(store modelsource.Store, secrets *SecretService, prober ModelProber, auditRecorder AuditRecorder, logger *slog.Logger) *ModelSourceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelSourceService{
		store:   store,
		secrets: secrets,
		prober:  prober,
		audit:   auditRecorder,
		logger:  logger,
	}
}

// Add registers a model endpoint. Only http(s) base URLs are accepted;
// a non-empty apiKey is sealed into the vault under a per-source
// reference.
func (s *ModelSourceService) Add(ctx context.Context, name, baseURL, apiKey string) (*modelsource.Source, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fault.Validation("model source name is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fault.Validation("base url must be absolute http(s), got %q", baseURL)
	}

	src := modelsource.Source{
		ID:        uuid.NewString(),
		Name:      name,
		BaseURL:   baseURL,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	if apiKey != "" {
		src.APIKeyRef = "model_source:" + src.ID
		if err := s.secrets.Set(ctx, src.APIKeyRef, apiKey); err != nil {
			return nil, fmt.Errorf("store api key: %w", err)
		}
	}
	if err := s.store.Create(ctx, src); err != nil {
		return nil, err
	}

	s.audit.Record(audit.Record{
		EventType: audit.EventModelSourceAdd,
		Summary:   fmt.Sprintf("Model source added: %s", name),
		Payload:   map[string]any{"provider": name},
	})
	s.logger.Info("model source added", "name", name, "base_url", baseURL)
	return &src, nil
}

// Test probes the source's endpoint. Unreachable endpoints are a result,
// not an error: the desktop client shows them as offline.
func (s *ModelSourceService) Test(ctx context.Context, id string) (*ProbeResult, error) {
	src, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	apiKey := ""
	if src.APIKeyRef != "" {
		apiKey, err = s.secrets.Get(ctx, src.APIKeyRef)
		if err != nil && !errors.Is(err, fault.ErrNotFound) {
			return nil, err
		}
	}

	result := &ProbeResult{}
	models, probeErr := s.prober.Probe(ctx, src.BaseURL, apiKey)
	if probeErr != nil {
		if !errors.Is(probeErr, fault.ErrTransient) {
			return nil, probeErr
		}
		result.Error = probeErr.Error()
	} else {
		result.Reachable = true
		result.Models = models
	}

	s.audit.Record(audit.Record{
		EventType: audit.EventModelSourceTest,
		Summary:   fmt.Sprintf("Model source tested: %s", src.Name),
		Payload:   map[string]any{"provider": src.Name, "success": result.Reachable},
	})
	return result, nil
}

// RecordUsage notes that a run used this source. Called by the client
// after a completed model exchange.
func (s *ModelSourceService) RecordUsage(ctx context.Context, id, modelName, sessionID string) error {
	src, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	s.audit.Record(audit.Record{
		SessionID: sessionID,
		EventType: audit.EventModelUsage,
		Summary:   fmt.Sprintf("Model used: %s/%s", src.Name, modelName),
		Payload:   map[string]any{"provider": src.Name},
	})
	return nil
}

// Delete removes a source and its vaulted key.
func (s *ModelSourceService) Delete(ctx context.Context, id string) error {
	src, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if src.APIKeyRef != "" {
		if err := s.secrets.Delete(ctx, src.APIKeyRef); err != nil && !errors.Is(err, fault.ErrNotFound) {
			return err
		}
	}
	return s.store.Delete(ctx, id)
}

// List returns all registered sources.
func (s *ModelSourceService) List(ctx context.Context) ([]modelsource.Source, error) {
	return s.store.List(ctx)
}

// SetEnabled flips a source's enabled flag.
func (s *ModelSourceService) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.store.SetEnabled(ctx, id, enabled)
}
