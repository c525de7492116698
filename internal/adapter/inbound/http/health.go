package http

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/Geo-fs/NeroAI/internal/domain/limits"
	"github.com/Geo-fs/NeroAI/internal/service"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker reports component health. Pass nil for components that
// are not wired.
type HealthChecker struct {
	audit   *service.AuditService
	rate    *limits.RateLimiter
	version string
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(audit *service.AuditService, rate *limits.RateLimiter, version string) *HealthChecker {
	return &HealthChecker{audit: audit, rate: rate, version: version}
}

// Check inspects the audit queue and rate limiter. An audit queue above
// 90% capacity marks the process unhealthy: the system is shedding
// records under backpressure.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.audit != nil {
		depth := h.audit.ChannelDepth()
		capacity := h.audit.ChannelCapacity()
		percentFull := 0
		if capacity > 0 {
			percentFull = depth * 100 / capacity
		}
		if percentFull > 90 {
			checks["audit"] = fmt.Sprintf("degraded: %d/%d (%d%%)", depth, capacity, percentFull)
			healthy = false
		} else {
			checks["audit"] = fmt.Sprintf("ok: %d/%d (%d%%)", depth, capacity, percentFull)
		}
		if drops := h.audit.DroppedRecords(); drops > 0 {
			checks["audit_drops"] = fmt.Sprintf("%d dropped", drops)
		}
	} else {
		checks["audit"] = "not configured"
	}

	if h.rate != nil {
		checks["rate_limiter"] = fmt.Sprintf("ok: %d sessions", h.rate.Sessions())
	} else {
		checks["rate_limiter"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	return HealthResponse{Status: status, Checks: checks, Version: h.version}
}

// Handler serves the health report, 503 when unhealthy.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()
		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})
}
