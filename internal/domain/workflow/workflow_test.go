package workflow

import (
	"context"
	"errors"
	"testing"

	celadapter "github.com/Geo-fs/NeroAI/internal/adapter/outbound/cel"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// recordingInvoker returns canned results keyed by tool name and records
// what it was asked to run.
type recordingInvoker struct {
	results map[string]map[string]any
	calls   []string
	args    []map[string]any
	err     error
}

func (r *recordingInvoker) Invoke(_ context.Context, tool string, args map[string]any) (map[string]any, error) {
	r.calls = append(r.calls, tool)
	r.args = append(r.args, args)
	if r.err != nil {
		return nil, r.err
	}
	return r.results[tool], nil
}

func newTestEngine(t *testing.T, invoker ToolInvoker) *Engine {
	t.Helper()
	cond, err := celadapter.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	return NewEngine(cond, invoker, nil)
}

func TestParseAndValidate(t *testing.T) {
	def, err := Parse([]byte(`
name: summarize
description: read a file and return its size
inputs:
  path: /tmp/in.txt
steps:
  - type: call_tool
    tool: file_read
    args:
      path: "{{path}}"
    result_var: doc
  - type: return
    result: "{{doc.content}}"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if def.Name != "summarize" || len(def.Steps) != 2 {
		t.Errorf("definition = %+v", def)
	}
}

func TestParseRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no name", "steps:\n  - type: return"},
		{"no steps", "name: empty"},
		{"unknown step", "name: w\nsteps:\n  - type: teleport"},
		{"prompt step", "name: w\nsteps:\n  - type: prompt_agent"},
		{"set_var without var", "name: w\nsteps:\n  - type: set_var\n    value: 1"},
		{"call_tool without tool", "name: w\nsteps:\n  - type: call_tool"},
		{"if without condition", "name: w\nsteps:\n  - type: if\n    then:\n      - type: return"},
		{"loop cap too high", "name: w\nsteps:\n  - type: loop\n    condition: \"true\"\n    max_iterations: 500\n    body:\n      - type: return"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, fault.ErrValidation) {
				t.Errorf("Parse() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestExecuteCallToolAndTemplates(t *testing.T) {
	invoker := &recordingInvoker{
		results: map[string]map[string]any{
			"file_read": {"path": "/tmp/in.txt", "content": "hello"},
		},
	}
	e := newTestEngine(t, invoker)
	def := &Definition{
		Name: "copy",
		Steps: []Step{
			{Type: StepSetVar, Var: "dest", Value: "/tmp/out.txt"},
			{Type: StepCallTool, Tool: "file_read", Args: map[string]any{"path": "{{source}}"}, ResultVar: "doc"},
			{Type: StepCallTool, Tool: "file_write", Args: map[string]any{
				"path":    "{{dest}}",
				"content": "copy of {{source}}: {{doc.content}}",
			}},
			{Type: StepReturn, Result: "{{doc.content}}"},
		},
	}

	out, err := e.Execute(context.Background(), def, map[string]any{"source": "/tmp/in.txt"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Returned || out.Result != "hello" {
		t.Errorf("outcome = %+v", out)
	}
	if out.ToolCalls != 2 {
		t.Errorf("ToolCalls = %d, want 2", out.ToolCalls)
	}
	if invoker.args[0]["path"] != "/tmp/in.txt" {
		t.Errorf("templated arg = %v", invoker.args[0])
	}
	if invoker.args[1]["content"] != "copy of /tmp/in.txt: hello" {
		t.Errorf("interpolated arg = %v", invoker.args[1]["content"])
	}
}

func TestExecuteIfBranches(t *testing.T) {
	e := newTestEngine(t, &recordingInvoker{})
	def := &Definition{
		Name: "branch",
		Steps: []Step{
			{Type: StepIf, Condition: `vars.n > 5`,
				Then: []Step{{Type: StepReturn, Result: "big"}},
				Else: []Step{{Type: StepReturn, Result: "small"}}},
		},
	}

	out, err := e.Execute(context.Background(), def, map[string]any{"n": 10})
	if err != nil || out.Result != "big" {
		t.Errorf("then branch: result = %v, err = %v", out, err)
	}
	out, err = e.Execute(context.Background(), def, map[string]any{"n": 1})
	if err != nil || out.Result != "small" {
		t.Errorf("else branch: result = %v, err = %v", out, err)
	}
}

func TestExecuteLoopRunsUntilConditionFalse(t *testing.T) {
	invoker := &recordingInvoker{results: map[string]map[string]any{"file_list": {}}}
	e := newTestEngine(t, invoker)
	def := &Definition{
		Name:   "until-empty",
		Inputs: map[string]any{"pending": true},
		Steps: []Step{
			{Type: StepLoop, Condition: `vars.pending`, Body: []Step{
				{Type: StepCallTool, Tool: "file_list", Args: map[string]any{"path": "/tmp"}},
				{Type: StepSetVar, Var: "pending", Value: false},
			}},
			{Type: StepReturn, Result: "done"},
		},
	}

	out, err := e.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Result != "done" || len(invoker.calls) != 1 {
		t.Errorf("outcome = %+v, calls = %v", out, invoker.calls)
	}
}

func TestExecuteLoopIterationCap(t *testing.T) {
	e := newTestEngine(t, &recordingInvoker{})
	def := &Definition{
		Name: "spin",
		Steps: []Step{
			{Type: StepLoop, Condition: `true`, MaxIterations: 5, Body: []Step{
				{Type: StepSetVar, Var: "x", Value: 1},
			}},
		},
	}
	_, err := e.Execute(context.Background(), def, nil)
	if !errors.Is(err, fault.ErrLimit) {
		t.Errorf("Execute() error = %v, want ErrLimit", err)
	}
}

func TestExecuteUndefinedTemplateVariable(t *testing.T) {
	e := newTestEngine(t, &recordingInvoker{})
	def := &Definition{
		Name:  "missing",
		Steps: []Step{{Type: StepReturn, Result: "{{nope}}"}},
	}
	_, err := e.Execute(context.Background(), def, nil)
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("Execute() error = %v, want ErrValidation", err)
	}
}

func TestExecuteToolErrorStops(t *testing.T) {
	invoker := &recordingInvoker{err: fault.Denied("policy", "denied")}
	e := newTestEngine(t, invoker)
	def := &Definition{
		Name: "denied",
		Steps: []Step{
			{Type: StepCallTool, Tool: "file_read", Args: map[string]any{"path": "/tmp/x"}},
			{Type: StepReturn, Result: "unreached"},
		},
	}
	out, err := e.Execute(context.Background(), def, nil)
	if !errors.Is(err, fault.ErrPermissionDenied) {
		t.Errorf("Execute() error = %v, want denial", err)
	}
	if out != nil {
		t.Errorf("outcome = %+v, want nil", out)
	}
}

func TestDryRunListsPlanWithoutExecuting(t *testing.T) {
	invoker := &recordingInvoker{}
	e := newTestEngine(t, invoker)
	def := &Definition{
		Name: "plan",
		Steps: []Step{
			{Type: StepSetVar, Var: "x", Value: 1},
			{Type: StepIf, Condition: `vars.x == 1`,
				Then: []Step{{Type: StepCallTool, Tool: "file_read", Args: map[string]any{"path": "/tmp/a"}}},
				Else: []Step{{Type: StepReturn, Result: "no"}}},
		},
	}

	plan, err := e.DryRun(def)
	if err != nil {
		t.Fatalf("DryRun() error = %v", err)
	}
	if len(plan) != 4 {
		t.Fatalf("got %d plan steps, want 4: %+v", len(plan), plan)
	}
	if plan[2].Path != "steps[1].then[0]" || plan[2].Detail != "file_read" {
		t.Errorf("plan[2] = %+v", plan[2])
	}
	if len(invoker.calls) != 0 {
		t.Errorf("dry run invoked tools: %v", invoker.calls)
	}
}

func TestTemplateWholeValueKeepsType(t *testing.T) {
	got, err := resolveValue("{{doc}}", map[string]any{
		"doc": map[string]any{"content": "x"},
	})
	if err != nil {
		t.Fatalf("resolveValue() error = %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["content"] != "x" {
		t.Errorf("resolved = %#v, want map preserved", got)
	}
}
