package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/memory"
	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/service"
)

func TestHealthEndpointHealthy(t *testing.T) {
	auditSvc := service.NewAuditService(memory.NewAuditStore(), nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	auditSvc.Start(ctx)
	defer func() {
		auditSvc.Stop()
		cancel()
	}()

	checker := NewHealthChecker(auditSvc, nil, "1.2.3")
	rec := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestHealthReportsFullAuditQueue(t *testing.T) {
	// A tiny never-drained channel fills immediately.
	auditSvc := service.NewAuditService(memory.NewAuditStore(), nil, testLogger(),
		service.WithChannelSize(2), service.WithSendTimeout(time.Millisecond))
	checker := NewHealthChecker(auditSvc, nil, "")

	for range 3 {
		auditSvc.Record(audit.Record{EventType: audit.EventToolCall, Summary: "filler"})
	}
	rec := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if decodeBody(t, rec)["status"] != "unhealthy" {
		t.Error("status should be unhealthy when the audit queue is full")
	}
}
