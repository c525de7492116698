package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/run"
	"github.com/Geo-fs/NeroAI/internal/domain/settings"
	"github.com/Geo-fs/NeroAI/pkg/canonjson"
)

// SettingsSource assembles the effective settings for one request.
type SettingsSource interface {
	Effective(ctx context.Context) (settings.Snapshot, error)
}

// RunDetail is a run together with its event stream.
type RunDetail struct {
	Run    run.Run
	Events []run.Event
}

// RunLogService owns the per-run event log. The input hash is always
// stored; raw input text only when privacy mode is off and query text
// logging is explicitly allowed.
type RunLogService struct {
	store    run.Store
	settings SettingsSource
	logger   *slog.Logger
}

// NewRunLogService creates a RunLogService. logger may be nil.
func NewRunLogService(store run.Store, settings SettingsSource, logger *slog.Logger) *RunLogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunLogService{store: store, settings: settings, logger: logger}
}

// StartRun opens a run for a chat turn or workflow execution.
func (s *RunLogService) StartRun(ctx context.Context, sessionID, mode, inputText, modelSourceID, modelName string) (*run.Run, error) {
	snap, err := s.settings.Effective(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	r := run.Run{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Mode:          mode,
		InputHash:     canonjson.HashText(inputText),
		ModelSourceID: modelSourceID,
		ModelName:     modelName,
		CreatedAt:     time.Now().UTC(),
	}
	if !snap.PrivacyMode && snap.AllowQueryTextLogging {
		r.InputText = inputText
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	s.logger.Debug("run started", "run_id", r.ID, "mode", mode, "session", sessionID)
	return &r, nil
}

// LogEvent appends one event to a run's stream.
func (s *RunLogService) LogEvent(ctx context.Context, runID, eventType string, payload map[string]any) error {
	ev := run.Event{
		ID:        uuid.NewString(),
		RunID:     runID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("append run event: %w", err)
	}
	return nil
}

// FinishRun closes the run with its total duration.
func (s *RunLogService) FinishRun(ctx context.Context, runID string, duration time.Duration) error {
	if err := s.store.Finish(ctx, runID, duration.Milliseconds()); err != nil {
		return err
	}
	s.logger.Debug("run finished", "run_id", runID, "duration_ms", duration.Milliseconds())
	return nil
}

// Get returns one run with its events.
func (s *RunLogService) Get(ctx context.Context, runID string) (*RunDetail, error) {
	r, err := s.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.Events(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run events: %w", err)
	}
	return &RunDetail{Run: *r, Events: events}, nil
}

// List returns the most recent runs.
func (s *RunLogService) List(ctx context.Context, limit int) ([]run.Run, error) {
	return s.store.List(ctx, limit)
}
