package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/workerproc"
	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/guard"
	"github.com/Geo-fs/NeroAI/internal/domain/settings"
	"github.com/Geo-fs/NeroAI/internal/domain/tool"
	"github.com/Geo-fs/NeroAI/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSettings serves a fixed snapshot.
type fakeSettings struct {
	snap settings.Snapshot
}

func (f *fakeSettings) Effective(context.Context) (settings.Snapshot, error) {
	return f.snap, nil
}

// defaultSnapshot mirrors the registry defaults with roomy budgets.
func defaultSnapshot() settings.Snapshot {
	return settings.Snapshot{
		PrivacyMode:            true,
		RedactAuditPayloads:    true,
		WritePreviewDefault:    true,
		DefaultSearchProvider:  "duckduckgo",
		MaxToolCallsPerMessage: 10,
		ToolCallsPerMinute:     100,
		MaxFileReadsPerRun:     20,
		MaxFileReadBytesPerRun: 5_000_000,
		MaxRunSeconds:          120,
		WorkerTimeoutSeconds:   30,
		WorkerOutputCapBytes:   262_144,
	}
}

// fakeIdentity serves a fixed identity.
type fakeIdentity struct {
	ident guard.Identity
}

func (f *fakeIdentity) ActiveIdentity(context.Context) (guard.Identity, error) {
	return f.ident, nil
}

// captureRecorder collects audit records synchronously.
type captureRecorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (c *captureRecorder) Record(rec audit.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *captureRecorder) byType(eventType string) []audit.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.Record
	for _, rec := range c.records {
		if rec.EventType == eventType {
			out = append(out, rec)
		}
	}
	return out
}

// inprocWorker runs the plugin in-process, mimicking the subprocess
// protocol without a spawn.
type inprocWorker struct {
	registry *tool.Registry
}

func (w *inprocWorker) Run(_ context.Context, req worker.Request, _ workerproc.Options) (*worker.Response, error) {
	plugin := w.registry.Get(req.Tool)
	if plugin == nil {
		return &worker.Response{OK: false, Error: "unknown tool"}, nil
	}
	result, err := plugin.Run(req.Args)
	if err != nil {
		return &worker.Response{OK: false, Error: err.Error()}, nil
	}
	return &worker.Response{OK: true, Result: result}, nil
}
