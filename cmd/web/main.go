package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/camziny/z-fit-2.0/internal/envstruct"
	"github.com/camziny/z-fit-2.0/internal/errors"
	"github.com/camziny/z-fit-2.0/internal/family"
	"github.com/camziny/z-fit-2.0/internal/flightrecorder"
	"github.com/camziny/z-fit-2.0/internal/logging"
	"github.com/camziny/z-fit-2.0/internal/metrics"
	"github.com/camziny/z-fit-2.0/internal/sqlite"
	"github.com/camziny/z-fit-2.0/internal/webauthnhandler"
	"github.com/camziny/z-fit-2.0/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
)

type application struct {
	logger          *slog.Logger
	webAuthnHandler *webauthnhandler.WebAuthnHandler
	sessionManager  *scs.SessionManager
	workoutService  *workout.Service
	metrics         *metrics.Manager
	// registry is nil when the /metrics endpoint is disabled.
	registry *prometheus.Registry
	// flightRecorder is nil unless a traces directory is configured.
	flightRecorder *flightrecorder.Recorder
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"ZFIT_ADDR" envDefault:"localhost:8081"`
	// FQDN is the fully qualified domain name of the server used for WebAuthn Relying Party configuration.
	FQDN string `env:"ZFIT_FQDN" envDefault:"localhost"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"ZFIT_SQLITE_URL" envDefault:"./zfit.sqlite3"`
	// FamilyTable is an optional path to a YAML exercise family table replacing the built-in one.
	FamilyTable string `env:"ZFIT_FAMILY_TABLE" envDefault:""`
	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `env:"ZFIT_METRICS_ENABLED" envDefault:"true"`
	// SessionLifetime is how long the session cookie, and with it an anonymous visitor's history, lives.
	SessionLifetime time.Duration `env:"ZFIT_SESSION_LIFETIME" envDefault:"720h"`
	// PasskeyTimeout is how long a started passkey registration or login can be finished.
	PasskeyTimeout time.Duration `env:"ZFIT_PASSKEY_TIMEOUT" envDefault:"5m"`
	// TracesDir enables the flight recorder, which writes an execution trace there when a request times out.
	TracesDir string `env:"ZFIT_TRACES_DIR" envDefault:""`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	families, err := loadFamilies(cfg.FamilyTable)
	if err != nil {
		return errors.Wrap(err, "load family table", slog.String("path", cfg.FamilyTable))
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed closing db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	sessionManager := initializeSessionManager(db, cfg.SessionLifetime)

	var webAuthnHandler *webauthnhandler.WebAuthnHandler
	if webAuthnHandler, err = webauthnhandler.New(webauthnhandler.Config{
		Addr:            cfg.Addr,
		FQDN:            cfg.FQDN,
		DisplayName:     "z-fit",
		CeremonyTimeout: cfg.PasskeyTimeout,
	}, logger, sessionManager, db); err != nil {
		return errors.Wrap(err, "new webauthn handler")
	}

	registry := metrics.NewRegistry()
	metricsManager := metrics.NewManager("zfit", "web", registry)
	if !cfg.MetricsEnabled {
		registry = nil
	}

	var recorder *flightrecorder.Recorder
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(logger, flightrecorder.Config{
			Dir: cfg.TracesDir, Window: 0, MaxBytes: 0, Cooldown: 0,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder", slog.String("dir", cfg.TracesDir))
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	app := application{
		logger:          logger,
		webAuthnHandler: webAuthnHandler,
		sessionManager:  sessionManager,
		workoutService:  workout.NewService(db, logger, families, metricsManager),
		metrics:         metricsManager,
		registry:        registry,
		flightRecorder:  recorder,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, app.routes()); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func loadFamilies(path string) (*family.Table, error) {
	if path == "" {
		return family.Default()
	}
	return family.Load(path)
}

func initializeSessionManager(dbs *sqlite.Database, lifetime time.Duration) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite, 24*time.Hour) //nolint:mnd // day
	sessionManager.Lifetime = lifetime
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
