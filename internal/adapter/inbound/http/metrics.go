package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the local API.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ToolCallsTotal  *prometheus.CounterVec
	DenialsTotal    *prometheus.CounterVec
	LimitBlocks     prometheus.Counter
}

// NewMetrics creates and registers all instruments with the registry.
// auditDrops and rateSessions are read lazily so the gauges always show
// the live values.
func NewMetrics(reg prometheus.Registerer, auditDrops func() float64, rateSessions func() float64) *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neroai",
				Name:      "requests_total",
				Help:      "Total API requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "neroai",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neroai",
				Name:      "tool_calls_total",
				Help:      "Tool calls by tool and outcome",
			},
			[]string{"tool", "status"},
		),
		DenialsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neroai",
				Name:      "denials_total",
				Help:      "Guard denials by kind (mode, workspace, policy, permission)",
			},
			[]string{"kind"},
		),
		LimitBlocks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "neroai",
				Name:      "limit_blocks_total",
				Help:      "Requests blocked by a budget or rate limit",
			},
		),
	}
	if auditDrops != nil {
		promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "neroai",
			Name:      "audit_dropped_records",
			Help:      "Audit records dropped due to backpressure",
		}, auditDrops)
	}
	if rateSessions != nil {
		promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "neroai",
			Name:      "rate_limit_sessions",
			Help:      "Sessions with a live rate-limit window",
		}, rateSessions)
	}
	return m
}
