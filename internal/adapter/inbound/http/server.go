package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Geo-fs/NeroAI/internal/domain/limits"
)

// Server binds the API handler, metrics, and health endpoint to one
// localhost listener. It owns the http.Server lifecycle.
type Server struct {
	svcs            Services
	rate            *limits.RateLimiter
	server          *http.Server
	addr            string
	version         string
	extraMiddleware func(http.Handler) http.Handler
	logger          *slog.Logger
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is "127.0.0.1:8737"
// (localhost only; this API is never meant to face a network).
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version string reported by /healthz.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithRateLimiter wires the session rate limiter into the health and
// metrics surfaces.
func WithRateLimiter(rate *limits.RateLimiter) Option {
	return func(s *Server) {
		s.rate = rate
	}
}

// WithMiddleware wraps the whole API chain with an extra middleware,
// outermost. Used for optional tracing.
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.extraMiddleware = mw
	}
}

// NewServer creates a Server over the given services.
func NewServer(svcs Services, opts ...Option) *Server {
	s := &Server{
		svcs:   svcs,
		addr:   "127.0.0.1:8737",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins serving and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg, s.auditDropsFn(), s.rateSessionsFn())

	handler := NewHandler(s.svcs, metrics, s.logger)

	// Outermost first: metrics capture the full request duration,
	// request id enriches the logger before anything logs, recover is
	// innermost so a panic is counted and logged like any other 500.
	var chain http.Handler = handler.Routes()
	chain = RecoverMiddleware(chain)
	chain = LoggingMiddleware(chain)
	chain = RequestIDMiddleware(s.logger)(chain)
	chain = MetricsMiddleware(metrics)(chain)
	if s.extraMiddleware != nil {
		chain = s.extraMiddleware(chain)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if s.svcs.Audit != nil {
		checker := NewHealthChecker(s.svcs.Audit, s.rate, s.version)
		mux.Handle("/healthz", checker.Handler())
	}
	mux.Handle("/", chain)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down api server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
		return err
	}
	s.logger.Info("api server stopped")
	return nil
}

// Close shuts the server down outside of Start's context flow.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}

func (s *Server) auditDropsFn() func() float64 {
	audit := s.svcs.Audit
	if audit == nil {
		return nil
	}
	return func() float64 { return float64(audit.DroppedRecords()) }
}

func (s *Server) rateSessionsFn() func() float64 {
	if s.rate == nil {
		return nil
	}
	return func() float64 { return float64(s.rate.Sessions()) }
}
