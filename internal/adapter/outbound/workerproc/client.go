// Package workerproc launches tool workers: one subprocess per tool
// call, re-invoking the server's own binary in worker mode. The child
// gets a scrubbed environment, a per-session working directory, a hard
// deadline, and capped output; everything else about the call travels
// in the single stdin request.
package workerproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/worker"
)

// Execution defaults, overridable per call through Options.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultOutputCap = 256 * 1024
)

// truncationMarker is appended when captured output hits the cap.
const truncationMarker = "\n<truncated>"

// envAllowlist is the only parent environment that reaches the worker.
var envAllowlist = []string{"SYSTEMROOT", "COMSPEC", "WINDIR", "TEMP", "TMP"}

// Options tune one worker invocation.
type Options struct {
	// WorkDir is the child's working directory; empty inherits.
	WorkDir string
	// Timeout is the hard wall-clock deadline; zero means DefaultTimeout.
	Timeout time.Duration
	// OutputCap bounds captured stdout and stderr each; zero means
	// DefaultOutputCap.
	OutputCap int
}

// Client spawns worker subprocesses.
type Client struct {
	program string
	args    []string
	logger  *slog.Logger
}

// New creates a client that runs program with args for every call.
// logger may be nil.
func New(program string, args []string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{program: program, args: args, logger: logger}
}

// NewSelf creates a client that re-invokes the current binary in worker
// mode.
func NewSelf(logger *slog.Logger) (*Client, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve own binary: %w", err)
	}
	return New(exe, []string{"worker"}, logger), nil
}

// Run executes one tool request in a fresh subprocess and returns the
// worker's response. Timeouts, spawn failures, non-zero exits, and
// unparseable output come back as worker failures carrying the captured
// streams; the exit code is consulted before stdout, so a non-zero exit
// fails even when stdout holds a parseable document. A zero-exit
// response with ok=false is returned as-is for the caller to interpret.
func (c *Client) Run(ctx context.Context, req worker.Request, opts Options) (*worker.Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	outputCap := opts.OutputCap
	if outputCap <= 0 {
		outputCap = DefaultOutputCap
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode worker request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.program, c.args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = scrubEnv(os.Environ())
	cmd.Stdin = bytes.NewReader(payload)

	stdout := newCappedBuffer(outputCap)
	stderr := newCappedBuffer(outputCap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		c.logger.Warn("worker timed out", "tool", req.Tool, "timeout", timeout)
		return nil, fault.WorkerFailure(
			fmt.Sprintf("tool execution timed out after %s", timeout),
			stdout.String(), stderr.String(),
		)
	}

	// A non-zero exit is a failure no matter what reached stdout; the
	// detail is whatever the child said on its way down.
	if runErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			detail = "tool worker failed"
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, fault.WorkerFailure(
				fmt.Sprintf("worker exited with code %d: %s", exitErr.ExitCode(), detail),
				stdout.String(), stderr.String(),
			)
		}
		return nil, fault.WorkerFailure(
			fmt.Sprintf("worker failed to start: %v", runErr),
			stdout.String(), stderr.String(),
		)
	}

	var resp worker.Response
	if err := json.Unmarshal([]byte(stdout.String()), &resp); err != nil {
		return nil, fault.WorkerFailure("worker produced unparseable output",
			stdout.String(), stderr.String())
	}
	resp.StdoutTruncated = stdout.truncated
	resp.StderrTruncated = stderr.truncated

	c.logger.Debug("worker finished",
		"tool", req.Tool, "ok", resp.OK, "duration_ms", elapsed.Milliseconds())
	return &resp, nil
}

// scrubEnv keeps only the allowlisted variables and pins UTF-8 text IO.
func scrubEnv(environ []string) []string {
	out := make([]string, 0, len(envAllowlist)+2)
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, allowed := range envAllowlist {
			if strings.EqualFold(name, allowed) {
				out = append(out, kv)
				break
			}
		}
	}
	out = append(out, "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	return out
}

// cappedBuffer retains the first cap bytes written and marks overflow.
type cappedBuffer struct {
	buf       bytes.Buffer
	cap       int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{cap: limit}
}

// Write never fails; overflow is silently dropped so the child is not
// killed by a broken pipe mid-run.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if remaining := b.cap - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
			b.truncated = true
		}
		b.buf.Write(p)
	} else if n > 0 {
		b.truncated = true
	}
	return n, nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}
