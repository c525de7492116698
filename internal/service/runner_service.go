package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/workerproc"
	"github.com/Geo-fs/NeroAI/internal/appdir"
	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/guard"
	"github.com/Geo-fs/NeroAI/internal/domain/limits"
	"github.com/Geo-fs/NeroAI/internal/domain/pathsec"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
	"github.com/Geo-fs/NeroAI/internal/domain/settings"
	"github.com/Geo-fs/NeroAI/internal/domain/tool"
	"github.com/Geo-fs/NeroAI/internal/worker"
	"github.com/Geo-fs/NeroAI/pkg/canonjson"
)

// Verbose audit samples are cut at these lengths.
const (
	argsSampleLen   = 300
	resultSampleLen = 600
)

// WorkerClient spawns one tool subprocess per call.
type WorkerClient interface {
	Run(ctx context.Context, req worker.Request, opts workerproc.Options) (*worker.Response, error)
}

// AuditRecorder records audit events without blocking.
type AuditRecorder interface {
	Record(rec audit.Record)
}

// RunEventLogger appends events to a run's stream.
type RunEventLogger interface {
	LogEvent(ctx context.Context, runID, eventType string, payload map[string]any) error
}

// ToolCallRequest is one tool invocation from the client.
type ToolCallRequest struct {
	SessionID string
	// RunID scopes budget accounting; empty falls back to the session.
	RunID     string
	Mode      string
	Tool      string
	Args      map[string]any
	Confirmed bool
	SafeMode  bool
}

// ToolCallResult is a successful invocation's outcome.
type ToolCallResult struct {
	Result     map[string]any
	ResultHash string
	// Quarantined is set when any path argument was redirected through
	// the quarantine copy.
	Quarantined bool
}

// RunnerService drives the tool execution pipeline: mode allowlist,
// workspace allowlist, policy, permission and path checks, quarantine,
// budgets, the worker subprocess, and post-execution accounting, in
// that order. Budgets come last among the checks so a denied call never
// burns a rate slot, and the call is counted before the worker spawns
// so a crashed worker still counts against the per-message cap.
type RunnerService struct {
	registry *tool.Registry
	guard    *guard.Guard
	rate     *limits.RateLimiter
	worker   WorkerClient
	settings SettingsSource
	audit    AuditRecorder
	runlog   RunEventLogger
	dirs     appdir.Dirs
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*limits.RunLimiter
}

// NewRunnerService creates a RunnerService. runlog may be nil when no
// run stream is wanted; logger may be nil.
func NewRunnerService(
	registry *tool.Registry,
	g *guard.Guard,
	rate *limits.RateLimiter,
	workerClient WorkerClient,
	settingsSource SettingsSource,
	auditRecorder AuditRecorder,
	runlog RunEventLogger,
	dirs appdir.Dirs,
	logger *slog.Logger,
) *RunnerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunnerService{
		registry: registry,
		guard:    g,
		rate:     rate,
		worker:   workerClient,
		settings: settingsSource,
		audit:    auditRecorder,
		runlog:   runlog,
		dirs:     dirs,
		logger:   logger,
		limiters: make(map[string]*limits.RunLimiter),
	}
}

// Execute runs one tool call through the full pipeline.
func (s *RunnerService) Execute(ctx context.Context, req ToolCallRequest) (*ToolCallResult, error) {
	snap, err := s.settings.Effective(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	plugin := s.registry.Get(req.Tool)
	if plugin == nil {
		return nil, fault.Validation("unknown tool %q", req.Tool)
	}

	if ok, reason := s.guard.IsToolAllowedInMode(req.Tool, req.Mode); !ok {
		s.recordDenial(audit.EventPolicyDenied, req, reason)
		return nil, fault.Denied("mode", reason)
	}

	ok, reason, err := s.guard.IsToolAllowedInWorkspace(ctx, req.Tool)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordDenial(audit.EventWorkspaceDenied, req, reason)
		return nil, fault.Denied("workspace", reason)
	}

	ok, reason, err = s.guard.PolicyAllowsAction(ctx, "tool."+req.Tool, req.Confirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordDenial(audit.EventPolicyDenied, req, reason)
		return nil, fault.Denied("policy", reason)
	}

	args, paths, err := normalizeArgs(req.Args)
	if err != nil {
		return nil, err
	}

	quarantined, err := s.checkRequirements(ctx, plugin, req, snap.QuarantineMode, args, paths)
	if err != nil {
		return nil, err
	}

	if tool.IsWriteFamily(req.Tool) {
		if req.Confirmed {
			args["confirm"] = true
		} else if snap.WritePreviewDefault {
			args["preview_only"] = true
		}
	}

	limiter, err := s.limiter(ctx, req, snap)
	if err != nil {
		return nil, err
	}
	if err := limiter.CheckRuntime(); err != nil {
		s.recordLimit(req, err)
		return nil, err
	}
	if err := limiter.CheckToolCall(); err != nil {
		s.recordLimit(req, err)
		return nil, err
	}
	if err := s.rate.Allow(req.SessionID, limiter.Budgets().ToolCallsPerMinute); err != nil {
		s.recordLimit(req, err)
		return nil, err
	}
	// Counted before the spawn: a worker that crashes or times out still
	// spent its slot.
	limiter.RecordToolCall()

	resp, err := s.runWorker(ctx, req, snap, args)
	if err != nil {
		return nil, err
	}
	result := resp.Result

	if tool.IsReadFamily(req.Tool) {
		files, bytes := countReads(result)
		if err := limiter.RecordFileReads(files, bytes); err != nil {
			s.recordLimit(req, err)
			return nil, err
		}
	}

	resultHash, err := canonjson.Hash(result)
	if err != nil {
		return nil, fmt.Errorf("hash result: %w", err)
	}

	payload := map[string]any{
		"tool":             req.Tool,
		"success":          true,
		"result_hash":      resultHash,
		"stdout_truncated": resp.StdoutTruncated,
		"stderr_truncated": resp.StderrTruncated,
	}
	if snap.VerboseLogging {
		payload["args_sample"] = sample(args, argsSampleLen)
		payload["result_sample"] = sample(result, resultSampleLen)
	}
	s.audit.Record(audit.Record{
		SessionID: req.SessionID,
		EventType: audit.EventToolCall,
		Summary:   fmt.Sprintf("Tool call: %s", req.Tool),
		Payload:   payload,
	})

	if s.runlog != nil && req.RunID != "" {
		if err := s.runlog.LogEvent(ctx, req.RunID, audit.EventToolCall, map[string]any{
			"tool":        req.Tool,
			"result_hash": resultHash,
		}); err != nil {
			s.logger.Warn("run event append failed", "run_id", req.RunID, "error", err)
		}
	}

	return &ToolCallResult{Result: result, ResultHash: resultHash, Quarantined: quarantined}, nil
}

// EndRun drops the budget accounting for a finished run.
func (s *RunnerService) EndRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, runID)
}

// checkRequirements verifies each of the plugin's permission
// requirements, rewriting quarantined paths in place. The consuming
// broker check runs at most once per requirement, against the primary
// path argument; every other path argument gets a non-consuming
// validation first, so a once grant covers a whole batch call and is
// only consumed when the whole invocation would otherwise succeed.
func (s *RunnerService) checkRequirements(ctx context.Context, plugin tool.Plugin, req ToolCallRequest, quarantineMode bool, args map[string]any, paths []string) (bool, error) {
	quarantined := false
	for _, r := range plugin.Requirements() {
		primary := ""
		if r.PathScoped {
			if p, ok := args["path"].(string); ok {
				primary = p
			}
		}

		for _, p := range paths {
			if p == primary {
				continue
			}
			decision, err := s.guard.ValidatePath(ctx, r.Permission, req.SessionID, p, req.SafeMode, quarantineMode)
			if err != nil {
				return false, err
			}
			q, err := s.applyDecision(req, r.Permission, decision, args, p)
			if err != nil {
				return false, err
			}
			quarantined = quarantined || q
		}

		decision, err := s.guard.AssertAllowed(ctx, r.Permission, req.SessionID, primary, req.SafeMode, quarantineMode)
		if err != nil {
			return false, err
		}
		q, err := s.applyDecision(req, r.Permission, decision, args, primary)
		if err != nil {
			return false, err
		}
		quarantined = quarantined || q
	}
	return quarantined, nil
}

// applyDecision turns one guard decision into a denial, a quarantine
// rewrite, or a pass-through.
func (s *RunnerService) applyDecision(req ToolCallRequest, perm permission.Permission, decision guard.Decision, args map[string]any, path string) (bool, error) {
	if !decision.Allowed {
		s.audit.Record(audit.Record{
			SessionID: req.SessionID,
			EventType: audit.EventPermissionDenied,
			Summary:   fmt.Sprintf("Denied %s for %s", perm, req.Tool),
			Payload:   map[string]any{"tool": req.Tool, "permission": string(perm)},
		})
		return false, fault.Denied(string(perm), decision.Reason)
	}
	if !decision.Quarantine {
		return false, nil
	}
	if !tool.IsReadFamily(req.Tool) {
		return false, fault.Denied(string(perm), guard.ReasonQuarantineRequired)
	}
	copied, err := s.copyToQuarantine(req.SessionID, path)
	if err != nil {
		return false, fmt.Errorf("quarantine copy: %w", err)
	}
	rewritePath(args, path, copied)
	return true, nil
}

// runWorker executes the call in a fresh subprocess.
func (s *RunnerService) runWorker(ctx context.Context, req ToolCallRequest, snap settings.Snapshot, args map[string]any) (*worker.Response, error) {
	workDir := s.dirs.SessionWorkDir(req.SessionID)
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	resp, err := s.worker.Run(ctx, worker.Request{Tool: req.Tool, Args: args}, workerproc.Options{
		WorkDir:   workDir,
		Timeout:   time.Duration(snap.WorkerTimeoutSeconds) * time.Second,
		OutputCap: snap.WorkerOutputCapBytes,
	})
	if err != nil {
		s.recordFailure(req, err.Error())
		return nil, err
	}
	if !resp.OK {
		s.recordFailure(req, resp.Error)
		return nil, fault.WorkerFailure(resp.Error, "", resp.Trace)
	}
	return resp, nil
}

// limiter returns the run's budget tracker, creating it with
// policy-overridden budgets on first use.
func (s *RunnerService) limiter(ctx context.Context, req ToolCallRequest, snap settings.Snapshot) (*limits.RunLimiter, error) {
	key := req.RunID
	if key == "" {
		key = req.SessionID
	}

	s.mu.Lock()
	if l, ok := s.limiters[key]; ok {
		s.mu.Unlock()
		return l, nil
	}
	s.mu.Unlock()

	base := snap.Budgets()
	overridden, err := s.guard.PolicyLimits(ctx, base.Map())
	if err != nil {
		return nil, err
	}
	budgets := limits.BudgetsFromMap(overridden)

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[key]; ok {
		return l, nil
	}
	l := limits.NewRunLimiter(req.SessionID, budgets)
	s.limiters[key] = l
	return l, nil
}

// copyToQuarantine copies an out-of-scope file into the session's
// quarantine area and returns the copy's path.
func (s *RunnerService) copyToQuarantine(sessionID, path string) (string, error) {
	dir := s.dirs.SessionQuarantineDir(sessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(path))

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	s.logger.Info("file quarantined", "session", sessionID, "source", path)
	return dst, nil
}

func (s *RunnerService) recordDenial(eventType string, req ToolCallRequest, reason string) {
	s.audit.Record(audit.Record{
		SessionID: req.SessionID,
		EventType: eventType,
		Summary:   fmt.Sprintf("Denied %s: %s", req.Tool, reason),
		Payload:   map[string]any{"tool": req.Tool},
	})
}

func (s *RunnerService) recordLimit(req ToolCallRequest, err error) {
	s.audit.Record(audit.Record{
		SessionID: req.SessionID,
		EventType: audit.EventLimitBlocked,
		Summary:   fmt.Sprintf("Limit blocked %s: %v", req.Tool, err),
		Payload:   map[string]any{"tool": req.Tool},
	})
}

func (s *RunnerService) recordFailure(req ToolCallRequest, msg string) {
	s.audit.Record(audit.Record{
		SessionID: req.SessionID,
		EventType: audit.EventToolCall,
		Summary:   fmt.Sprintf("Tool call failed: %s", req.Tool),
		Payload:   map[string]any{"tool": req.Tool, "success": false, "error": msg},
	})
}

// normalizeArgs copies args and rewrites every path argument to its
// normalized absolute form. The normalized paths are the authoritative
// inputs for grant checks; the worker sees the same values.
func normalizeArgs(in map[string]any) (map[string]any, []string, error) {
	args := make(map[string]any, len(in))
	for k, v := range in {
		args[k] = v
	}

	var paths []string
	if p := tool.PathArgs(args); len(p) > 0 {
		if raw, ok := args["path"].(string); ok && raw != "" {
			np, err := pathsec.Normalize(raw)
			if err != nil {
				return nil, nil, fault.Validation("invalid path %q: %v", raw, err)
			}
			args["path"] = np
			paths = append(paths, np)
		}
		if rawList, ok := args["paths"]; ok {
			normalized, err := normalizePathList(rawList)
			if err != nil {
				return nil, nil, err
			}
			args["paths"] = normalized
			for _, np := range normalized {
				paths = append(paths, np)
			}
		}
	}
	return args, paths, nil
}

func normalizePathList(raw any) ([]string, error) {
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	default:
		return nil, nil
	}
	out := make([]string, 0, len(items))
	for _, p := range items {
		np, err := pathsec.Normalize(p)
		if err != nil {
			return nil, fault.Validation("invalid path %q: %v", p, err)
		}
		out = append(out, np)
	}
	return out, nil
}

// rewritePath replaces old with new in both path-shaped arguments.
func rewritePath(args map[string]any, old, replacement string) {
	if p, ok := args["path"].(string); ok && p == old {
		args["path"] = replacement
	}
	if list, ok := args["paths"].([]string); ok {
		for i, p := range list {
			if p == old {
				list[i] = replacement
			}
		}
	}
}

// countReads sums the files and bytes a read-family result represents.
func countReads(result map[string]any) (int, int64) {
	if content, ok := result["content"].(string); ok {
		return 1, int64(len(content))
	}
	var items []map[string]any
	switch v := result["items"].(type) {
	case []map[string]any:
		items = v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				items = append(items, m)
			}
		}
	}
	files, bytes := 0, int64(0)
	for _, m := range items {
		if content, ok := m["content"].(string); ok {
			files++
			bytes += int64(len(content))
		}
	}
	return files, bytes
}

// sample renders a value as canonical JSON cut to n characters.
func sample(v any, n int) string {
	b, err := canonjson.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
