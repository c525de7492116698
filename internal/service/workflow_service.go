package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Geo-fs/NeroAI/internal/appdir"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
	"github.com/Geo-fs/NeroAI/internal/domain/workflow"
)

// workflowNameRe matches a bare workflow name; anything else in the
// workflow field is treated as inline YAML.
var workflowNameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// WorkflowRequest is one workflow execution from the client.
type WorkflowRequest struct {
	SessionID string
	// Workflow is either a stored workflow name or an inline YAML
	// definition.
	Workflow string
	Inputs   map[string]any
	DryRun   bool
	// Confirmed applies to every write-family tool call the workflow
	// makes.
	Confirmed bool
	SafeMode  bool
}

// WorkflowResult reports one execution or dry-run plan.
type WorkflowResult struct {
	RunID     string              `json:"run_id,omitempty"`
	Name      string              `json:"name"`
	Returned  bool                `json:"returned"`
	Result    any                 `json:"result,omitempty"`
	ToolCalls int                 `json:"tool_calls"`
	Plan      []workflow.PlanStep `json:"plan,omitempty"`
}

// WorkflowService resolves definitions and runs them under an open run
// in workflow mode, so every tool call goes through the full pipeline
// with per-run budgets.
type WorkflowService struct {
	cond   workflow.ConditionEvaluator
	runner *RunnerService
	runlog *RunLogService
	dirs   appdir.Dirs
	logger *slog.Logger
}

// NewWorkflowService creates a WorkflowService. logger may be nil.
func NewWorkflowService(cond workflow.ConditionEvaluator, runner *RunnerService, runlog *RunLogService, dirs appdir.Dirs, logger *slog.Logger) *WorkflowService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowService{cond: cond, runner: runner, runlog: runlog, dirs: dirs, logger: logger}
}

// Execute resolves and runs (or dry-runs) one workflow.
func (s *WorkflowService) Execute(ctx context.Context, req WorkflowRequest) (*WorkflowResult, error) {
	if req.Workflow == "" {
		return nil, fault.Validation("workflow is required")
	}
	def, err := s.resolve(req.Workflow)
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		engine := workflow.NewEngine(s.cond, nil, s.logger)
		plan, err := engine.DryRun(def)
		if err != nil {
			return nil, err
		}
		return &WorkflowResult{Name: def.Name, Plan: plan}, nil
	}

	r, err := s.runlog.StartRun(ctx, req.SessionID, run.ModeWorkflow, def.Name, "", "")
	if err != nil {
		return nil, err
	}
	started := time.Now()
	defer s.runner.EndRun(r.ID)

	invoker := &runnerInvoker{
		runner:    s.runner,
		sessionID: req.SessionID,
		runID:     r.ID,
		confirmed: req.Confirmed,
		safeMode:  req.SafeMode,
	}
	engine := workflow.NewEngine(s.cond, invoker, s.logger)
	outcome, execErr := engine.Execute(ctx, def, req.Inputs)

	if err := s.runlog.FinishRun(ctx, r.ID, time.Since(started)); err != nil {
		s.logger.Warn("workflow run finish failed", "run_id", r.ID, "error", err)
	}
	if execErr != nil {
		return nil, execErr
	}
	return &WorkflowResult{
		RunID:     r.ID,
		Name:      def.Name,
		Returned:  outcome.Returned,
		Result:    outcome.Result,
		ToolCalls: outcome.ToolCalls,
	}, nil
}

// resolve loads a stored definition by name from the workflows dir, or
// parses the field as inline YAML.
func (s *WorkflowService) resolve(spec string) (*workflow.Definition, error) {
	if workflowNameRe.MatchString(spec) {
		path := filepath.Join(s.dirs.Root, "workflows", spec+".yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fault.NotFound("workflow", spec)
			}
			return nil, err
		}
		return workflow.Parse(data)
	}
	return workflow.Parse([]byte(spec))
}

// runnerInvoker binds the tool runner to one workflow run.
type runnerInvoker struct {
	runner    *RunnerService
	sessionID string
	runID     string
	confirmed bool
	safeMode  bool
}

func (r *runnerInvoker) Invoke(ctx context.Context, toolName string, args map[string]any) (map[string]any, error) {
	res, err := r.runner.Execute(ctx, ToolCallRequest{
		SessionID: r.sessionID,
		RunID:     r.runID,
		Mode:      run.ModeWorkflow,
		Tool:      toolName,
		Args:      args,
		Confirmed: r.confirmed,
		SafeMode:  r.safeMode,
	})
	if err != nil {
		return nil, err
	}
	return res.Result, nil
}

var _ workflow.ToolInvoker = (*runnerInvoker)(nil)
