package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	celadapter "github.com/Geo-fs/NeroAI/internal/adapter/outbound/cel"
	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/memory"
	"github.com/Geo-fs/NeroAI/internal/appdir"
	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/guard"
	"github.com/Geo-fs/NeroAI/internal/domain/limits"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
	"github.com/Geo-fs/NeroAI/internal/domain/tool"
)

type workflowFixture struct {
	svc    *WorkflowService
	broker *permission.Broker
	runs   *memory.RunStore
	dirs   appdir.Dirs
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	dirs, err := appdir.At(filepath.Join(t.TempDir(), "nero"))
	if err != nil {
		t.Fatalf("appdir.At() error = %v", err)
	}

	recorder := &captureRecorder{}
	broker := permission.NewBroker(memory.NewGrantStore(), recorder, testLogger())
	g := guard.New(broker, &fakeIdentity{}, testLogger())
	registry := tool.Builtin()
	snap := &fakeSettings{snap: defaultSnapshot()}

	runs := memory.NewRunStore()
	runlog := NewRunLogService(runs, snap, testLogger())
	runner := NewRunnerService(
		registry, g, limits.NewRateLimiter(testLogger()), &inprocWorker{registry: registry},
		snap, recorder, runlog, dirs, testLogger(),
	)
	cond, err := celadapter.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	return &workflowFixture{
		svc:    NewWorkflowService(cond, runner, runlog, dirs, testLogger()),
		broker: broker,
		runs:   runs,
		dirs:   dirs,
	}
}

const readAndReturnYAML = `
name: read-note
steps:
  - type: call_tool
    tool: file_read
    args:
      path: "{{source}}"
    result_var: doc
  - type: return
    result: "{{doc.content}}"
`

func TestWorkflowExecuteInlineYAML(t *testing.T) {
	f := newWorkflowFixture(t)
	dir := t.TempDir()
	path := writeTempFile(t, dir, "note.txt", "workflow data")
	if _, err := f.broker.Grant(context.Background(), permission.FilesystemRead, permission.ScopeSession, "s1", []string{dir}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	res, err := f.svc.Execute(context.Background(), WorkflowRequest{
		SessionID: "s1",
		Workflow:  readAndReturnYAML,
		Inputs:    map[string]any{"source": path},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Returned || res.Result != "workflow data" || res.ToolCalls != 1 {
		t.Errorf("result = %+v", res)
	}

	// The execution ran under a finished workflow-mode run with events.
	r, err := f.runs.Get(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if r.Mode != run.ModeWorkflow || r.DurationMS == nil {
		t.Errorf("run = %+v", r)
	}
	events, _ := f.runs.Events(context.Background(), res.RunID)
	if len(events) != 1 {
		t.Errorf("got %d run events, want 1", len(events))
	}
}

func TestWorkflowExecuteStoredByName(t *testing.T) {
	f := newWorkflowFixture(t)
	wfDir := filepath.Join(f.dirs.Root, "workflows")
	if err := os.MkdirAll(wfDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wfDir, "greet.yaml"), []byte(`
name: greet
steps:
  - type: set_var
    var: msg
    value: hello
  - type: return
    result: "{{msg}}"
`), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Execute(context.Background(), WorkflowRequest{SessionID: "s1", Workflow: "greet"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Result != "hello" {
		t.Errorf("result = %+v", res)
	}
}

func TestWorkflowExecuteUnknownName(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.svc.Execute(context.Background(), WorkflowRequest{SessionID: "s1", Workflow: "no-such-workflow"})
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Execute() error = %v, want ErrNotFound", err)
	}
}

func TestWorkflowDryRunHasNoSideEffects(t *testing.T) {
	f := newWorkflowFixture(t)
	// No grant: a real execution would be denied, a dry run never gets
	// that far.
	res, err := f.svc.Execute(context.Background(), WorkflowRequest{
		SessionID: "s1",
		Workflow:  readAndReturnYAML,
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Plan) != 2 || res.Plan[0].Type != "call_tool" {
		t.Errorf("plan = %+v", res.Plan)
	}
	if res.RunID != "" {
		t.Errorf("dry run opened a run: %+v", res)
	}
	if runs, _ := f.runs.List(context.Background(), 10); len(runs) != 0 {
		t.Errorf("dry run persisted runs: %+v", runs)
	}
}

func TestWorkflowDeniedToolCallFailsRun(t *testing.T) {
	f := newWorkflowFixture(t)
	dir := t.TempDir()
	writeTempFile(t, dir, "note.txt", "data")

	_, err := f.svc.Execute(context.Background(), WorkflowRequest{
		SessionID: "s1",
		Workflow:  readAndReturnYAML,
		Inputs:    map[string]any{"source": filepath.Join(dir, "note.txt")},
	})
	if !errors.Is(err, fault.ErrPermissionDenied) {
		t.Fatalf("Execute() error = %v, want denial", err)
	}

	// The run is still recorded and closed.
	runs, _ := f.runs.List(context.Background(), 10)
	if len(runs) != 1 || runs[0].DurationMS == nil {
		t.Errorf("runs = %+v", runs)
	}
}
