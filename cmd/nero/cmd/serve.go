package cmd

import (
	"context"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Geo-fs/NeroAI/internal/adapter/inbound/http"
	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/cel"
	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/modelhttp"
	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/secretbox"
	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/sqlite"
	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/websearch"
	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/workerproc"
	"github.com/Geo-fs/NeroAI/internal/appdir"
	"github.com/Geo-fs/NeroAI/internal/config"
	"github.com/Geo-fs/NeroAI/internal/domain/capture"
	"github.com/Geo-fs/NeroAI/internal/domain/guard"
	"github.com/Geo-fs/NeroAI/internal/domain/limits"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
	"github.com/Geo-fs/NeroAI/internal/domain/search"
	"github.com/Geo-fs/NeroAI/internal/domain/settings"
	"github.com/Geo-fs/NeroAI/internal/domain/tool"
	"github.com/Geo-fs/NeroAI/internal/service"
	"github.com/Geo-fs/NeroAI/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backend API server",
	Long: `Start the nero backend API server.

The server listens on localhost only and exposes the tool, search,
permission, and settings API the assistant UI talks to. All state lives
under the data directory ($NERO_HOME, default: <user-config-dir>/nero).

Examples:
  # Start with defaults
  nero serve

  # Start with a specific config file
  nero --config /path/to/nero.yaml serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg.Logging)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("nero stopped")
	return nil
}

// run wires every component together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	dirs, err := resolveDirs(cfg)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	logger.Info("data directory resolved", "root", dirs.Root)

	// One backend per data root. A second instance would race the
	// sqlite file and the secret vault.
	lock, err := appdir.AcquireLock(dirs.Root)
	if err != nil {
		return fmt.Errorf("another nero instance holds %s: %w", dirs.Root, err)
	}
	defer func() { _ = lock.Release() }()

	db, err := sqlite.Open(dirs.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	profiles := sqlite.NewProfileStore(db)
	workspaces := sqlite.NewWorkspaceStore(db)
	identity := service.NewIdentityService(profiles, workspaces)
	settingsSvc := settings.NewService(sqlite.NewSettingsStore(db), profiles, workspaces, logger)

	// The audit payload policy follows the live settings, so toggling
	// redact_audit_payloads applies to the very next record.
	payloadPolicy := func(ctx context.Context) (redact, verbose bool) {
		snap, err := settingsSvc.Effective(ctx)
		if err != nil {
			return true, false
		}
		return snap.RedactAuditPayloads, snap.VerboseLogging
	}
	auditSvc := service.NewAuditService(sqlite.NewAuditStore(db), payloadPolicy, logger,
		service.WithChannelSize(cfg.Audit.ChannelSize),
		service.WithBatchSize(cfg.Audit.BatchSize),
		service.WithFlushInterval(cfg.Audit.FlushInterval()),
		service.WithSendTimeout(cfg.Audit.SendTimeout()),
	)
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	broker := permission.NewBroker(sqlite.NewGrantStore(db), auditSvc, logger)
	g := guard.New(broker, identity, logger)
	registry := tool.Builtin()

	rate := limits.NewRateLimiter(logger)
	rate.StartCleanup()
	defer rate.Stop()

	workerClient, err := workerproc.NewSelf(logger)
	if err != nil {
		return fmt.Errorf("create worker client: %w", err)
	}

	runlog := service.NewRunLogService(sqlite.NewRunStore(db), settingsSvc, logger)
	runner := service.NewRunnerService(registry, g, rate, workerClient,
		settingsSvc, auditSvc, runlog, dirs, logger)

	providers := []search.Provider{
		websearch.NewDuckDuckGo(&stdhttp.Client{Timeout: 15 * time.Second}, logger),
	}
	searchSvc := service.NewSearchService(g, rate, providers, settingsSvc, auditSvc, logger)

	cond, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("create condition evaluator: %w", err)
	}
	workflows := service.NewWorkflowService(cond, runner, runlog, dirs, logger)

	box, err := secretbox.New(dirs.Root)
	if err != nil {
		return fmt.Errorf("open secret vault: %w", err)
	}
	secrets := service.NewSecretService(sqlite.NewSecretStore(db), box, logger)
	models := service.NewModelSourceService(sqlite.NewModelSourceStore(db), secrets,
		modelhttp.NewProber(&stdhttp.Client{Timeout: 10 * time.Second}), auditSvc, logger)

	captures := capture.NewStore(0, logger)
	captures.StartJanitor()
	defer captures.Stop()

	opts := []http.Option{
		http.WithAddr(cfg.Server.Addr),
		http.WithLogger(logger),
		http.WithVersion(Version),
		http.WithRateLimiter(rate),
	}

	if cfg.Telemetry.Enabled {
		provider, err := telemetry.New(ctx, telemetry.Config{
			ServiceName:    "nero",
			ServiceVersion: Version,
			Enabled:        true,
			ExportInterval: time.Duration(cfg.Telemetry.IntervalSeconds) * time.Second,
		}, logger)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
		opts = append(opts, http.WithMiddleware(provider.HTTPMiddleware))
	}

	logger.Info("nero starting",
		"version", Version,
		"addr", cfg.Server.Addr,
		"data_dir", dirs.Root,
		"telemetry", cfg.Telemetry.Enabled,
	)
	printBanner(cfg.Server.Addr, dirs.Root, len(registry.Names()))

	server := http.NewServer(http.Services{
		Runner:     runner,
		Search:     searchSvc,
		Workflows:  workflows,
		RunLog:     runlog,
		Broker:     broker,
		Audit:      auditSvc,
		Settings:   settingsSvc,
		Profiles:   profiles,
		Workspaces: workspaces,
		Secrets:    secrets,
		Models:     models,
		Captures:   captures,
	}, opts...)
	return server.Start(ctx)
}

// printBanner writes a short startup banner to stderr. Logs may be
// JSON; the banner is for the human who just typed "nero serve".
func printBanner(addr, dataDir string, toolCount int) {
	const (
		reset = "\033[0m"
		bold  = "\033[1m"
		cyan  = "\033[36m"
		dim   = "\033[2m"
	)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  %s%sNero %s%s\n", bold, cyan, Version, reset)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "  %-10s http://%s\n", "API:", addr)
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", "Data:", dataDir)
	fmt.Fprintf(os.Stderr, "  %-10s %d builtin\n", "Tools:", toolCount)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "\n")
}

// resolveDirs prefers an explicit data.dir from config over the
// NERO_HOME / user-config-dir default.
func resolveDirs(cfg *config.Config) (appdir.Dirs, error) {
	if cfg.Data.Dir != "" {
		return appdir.At(cfg.Data.Dir)
	}
	return appdir.Resolve()
}

// newLogger builds the process logger. Logs go to stderr so stdout
// stays clean for command output.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level. Unrecognized
// values fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
