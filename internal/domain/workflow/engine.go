package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// ConditionEvaluator evaluates an if/loop condition against the variable
// bag. Implemented by the cel adapter.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, expression string, vars map[string]any) (bool, error)
}

// ToolInvoker runs one tool call on behalf of the workflow. Implemented
// by the tool runner bound to the workflow's run.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
}

// Outcome is the result of one workflow execution.
type Outcome struct {
	// Returned is set when a return step ended the workflow.
	Returned bool
	Result   any
	// Vars is the final variable bag.
	Vars      map[string]any
	ToolCalls int
}

// PlanStep is one entry of a dry-run plan.
type PlanStep struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
}

// Engine executes workflow definitions.
type Engine struct {
	cond   ConditionEvaluator
	tools  ToolInvoker
	logger *slog.Logger
}

// NewEngine creates an Engine. logger may be nil.
func NewEngine(cond ConditionEvaluator, tools ToolInvoker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cond: cond, tools: tools, logger: logger}
}

// Execute runs the definition. The variable bag starts from the
// definition's declared inputs, overridden by the caller's inputs.
func (e *Engine) Execute(ctx context.Context, def *Definition, inputs map[string]any) (*Outcome, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	vars := make(map[string]any, len(def.Inputs)+len(inputs))
	for k, v := range def.Inputs {
		vars[k] = v
	}
	for k, v := range inputs {
		vars[k] = v
	}

	out := &Outcome{Vars: vars}
	returned, result, err := e.runSteps(ctx, def.Steps, vars, out)
	if err != nil {
		return nil, err
	}
	out.Returned = returned
	out.Result = result
	return out, nil
}

func (e *Engine) runSteps(ctx context.Context, steps []Step, vars map[string]any, out *Outcome) (bool, any, error) {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}
		switch step.Type {
		case StepSetVar:
			value, err := resolveValue(step.Value, vars)
			if err != nil {
				return false, nil, err
			}
			vars[step.Var] = value

		case StepCallTool:
			resolved, err := resolveValue(step.Args, vars)
			if err != nil {
				return false, nil, err
			}
			args, _ := resolved.(map[string]any)
			if args == nil {
				args = map[string]any{}
			}
			result, err := e.tools.Invoke(ctx, step.Tool, args)
			if err != nil {
				return false, nil, fmt.Errorf("step %d (%s): %w", i, step.Tool, err)
			}
			out.ToolCalls++
			if step.ResultVar != "" {
				vars[step.ResultVar] = result
			}

		case StepIf:
			ok, err := e.cond.Evaluate(ctx, step.Condition, vars)
			if err != nil {
				return false, nil, fault.Validation("step %d: condition %q: %v", i, step.Condition, err)
			}
			branch := step.Then
			if !ok {
				branch = step.Else
			}
			returned, result, err := e.runSteps(ctx, branch, vars, out)
			if err != nil || returned {
				return returned, result, err
			}

		case StepLoop:
			limit := step.MaxIterations
			if limit == 0 {
				limit = DefaultMaxIterations
			}
			iterations := 0
			for {
				ok, err := e.cond.Evaluate(ctx, step.Condition, vars)
				if err != nil {
					return false, nil, fault.Validation("step %d: condition %q: %v", i, step.Condition, err)
				}
				if !ok {
					break
				}
				if iterations++; iterations > limit {
					return false, nil, fault.Limit(fmt.Sprintf("Loop exceeded %d iterations", limit))
				}
				returned, result, err := e.runSteps(ctx, step.Body, vars, out)
				if err != nil || returned {
					return returned, result, err
				}
			}

		case StepReturn:
			result, err := resolveValue(step.Result, vars)
			if err != nil {
				return false, nil, err
			}
			return true, result, nil
		}
	}
	return false, nil, nil
}

// DryRun renders the step plan without executing anything. Conditions
// and templates are shown verbatim; branches are listed unconditionally.
func (e *Engine) DryRun(def *Definition) ([]PlanStep, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	var plan []PlanStep
	planSteps(def.Steps, "steps", &plan)
	return plan, nil
}

func planSteps(steps []Step, path string, plan *[]PlanStep) {
	for i, step := range steps {
		at := fmt.Sprintf("%s[%d]", path, i)
		entry := PlanStep{Path: at, Type: step.Type}
		switch step.Type {
		case StepSetVar:
			entry.Detail = step.Var
		case StepCallTool:
			entry.Detail = step.Tool
		case StepIf, StepLoop:
			entry.Detail = step.Condition
		}
		*plan = append(*plan, entry)
		planSteps(step.Then, at+".then", plan)
		planSteps(step.Else, at+".else", plan)
		planSteps(step.Body, at+".body", plan)
	}
}
