package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/guard"
	"github.com/Geo-fs/NeroAI/internal/domain/limits"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
	"github.com/Geo-fs/NeroAI/internal/domain/search"
	"github.com/Geo-fs/NeroAI/pkg/canonjson"
)

// searchAction is the action name web searches evaluate under, both in
// policy rules and in workspace tool allowlists. It matches the
// permission name, not a tool name; tools use the "tool." prefix.
const searchAction = "web.search"

// SearchRequest is one web search from the client.
type SearchRequest struct {
	SessionID  string
	Query      string
	NumResults int
	Confirmed  bool
	SafeMode   bool
	// SafeSearch asks the provider for filtered results.
	SafeSearch bool
	// ManualInput, when non-empty, bypasses network providers entirely
	// and is parsed as user-pasted results.
	ManualInput string
}

// SearchService runs web searches through the same guard chain as tool
// calls: policy, workspace allowlist, permission broker, rate limit,
// then the provider.
type SearchService struct {
	guard     *guard.Guard
	rate      *limits.RateLimiter
	providers map[string]search.Provider
	settings  SettingsSource
	audit     AuditRecorder
	logger    *slog.Logger
}

// NewSearchService creates a SearchService over the given providers.
// logger may be nil.
func NewSearchService(g *guard.Guard, rate *limits.RateLimiter, providers []search.Provider, settingsSource SettingsSource, auditRecorder AuditRecorder, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]search.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &SearchService{
		guard:     g,
		rate:      rate,
		providers: byName,
		settings:  settingsSource,
		audit:     auditRecorder,
		logger:    logger,
	}
}

// Execute runs one search. The query itself is never audited; only its
// hash is, unless verbose logging is on and privacy settings permit the
// text.
func (s *SearchService) Execute(ctx context.Context, req SearchRequest) ([]search.Result, error) {
	if req.Query == "" && req.ManualInput == "" {
		return nil, fault.Validation("query is required")
	}
	snap, err := s.settings.Effective(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	ok, reason, err := s.guard.PolicyAllowsAction(ctx, searchAction, req.Confirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordExecute(req, snap.VerboseLogging && snap.AllowQueryTextLogging, "", false, 0)
		return nil, fault.Denied("policy", reason)
	}

	ok, reason, err = s.guard.IsToolAllowedInWorkspace(ctx, searchAction)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fault.Denied("workspace", reason)
	}

	decision, err := s.guard.AssertAllowed(ctx, permission.WebSearch, req.SessionID, "", req.SafeMode, false)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.audit.Record(audit.Record{
			SessionID: req.SessionID,
			EventType: audit.EventPermissionDenied,
			Summary:   "Denied web.search",
			Payload:   map[string]any{"permission": string(permission.WebSearch)},
		})
		return nil, fault.Denied(string(permission.WebSearch), decision.Reason)
	}

	if err := s.rate.Allow(req.SessionID, snap.ToolCallsPerMinute); err != nil {
		s.audit.Record(audit.Record{
			SessionID: req.SessionID,
			EventType: audit.EventLimitBlocked,
			Summary:   "Limit blocked web search",
			Payload:   map[string]any{"tool": searchAction},
		})
		return nil, err
	}

	results, providerName, err := s.dispatch(ctx, req, snap.DefaultSearchProvider)
	success := err == nil
	s.recordExecute(req, snap.VerboseLogging && snap.AllowQueryTextLogging, providerName, success, len(results))
	if err != nil {
		return nil, err
	}
	return results, nil
}

// dispatch picks the provider: explicit manual input wins, then the
// configured default. A transient provider failure surfaces as such so
// the client can offer manual entry.
func (s *SearchService) dispatch(ctx context.Context, req SearchRequest, defaultProvider string) ([]search.Result, string, error) {
	if req.ManualInput != "" {
		results, err := search.ParseManual(req.ManualInput)
		return results, search.ProviderManual, err
	}

	provider, ok := s.providers[defaultProvider]
	if !ok {
		return nil, defaultProvider, fault.Validation("unknown search provider %q", defaultProvider)
	}
	results, err := provider.Search(ctx, req.Query, req.NumResults, req.SafeSearch)
	if err != nil {
		if errors.Is(err, fault.ErrTransient) {
			s.logger.Warn("search provider failed", "provider", provider.Name(), "error", err)
		}
		return nil, provider.Name(), err
	}
	return results, provider.Name(), nil
}

func (s *SearchService) recordExecute(req SearchRequest, includeQuery bool, provider string, success bool, numResults int) {
	payload := map[string]any{
		"provider":    provider,
		"query_hash":  canonjson.HashText(req.Query),
		"success":     success,
		"num_results": numResults,
	}
	if includeQuery {
		payload["query"] = req.Query
	}
	s.audit.Record(audit.Record{
		SessionID: req.SessionID,
		EventType: audit.EventSearchExecute,
		Summary:   fmt.Sprintf("Web search via %s", provider),
		Payload:   payload,
	})
}
