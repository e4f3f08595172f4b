// Package app provides the core App struct and lifecycle management for the
// service chassis. App can be embedded in larger applications or run
// standalone.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/calyptra/chassis/internal/config"
	"github.com/calyptra/chassis/internal/health"
	"github.com/calyptra/chassis/internal/metrics"
	"github.com/calyptra/chassis/internal/server"
	"github.com/calyptra/chassis/internal/storage"
	"github.com/calyptra/chassis/internal/storage/memory"
	"github.com/calyptra/chassis/internal/storage/sqldb"
	"github.com/calyptra/chassis/internal/telemetry"
)

type namedProbe struct {
	name  string
	probe health.ProbeFunc
}

// App wires configuration, storage, metrics, health checks, telemetry, and
// the HTTP server into one lifecycle.
type App struct {
	// Dependencies (injected via options)
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	store      storage.Store
	metrics    *metrics.Metrics
	probes     []namedProbe

	// Internal state
	health     *health.Aggregator
	telemetry  *telemetry.Telemetry
	server     *server.Server
	httpServer *http.Server

	mu sync.Mutex
}

// New creates a new App with the given options. By default configuration is
// read from config.yaml, storage follows the configured driver, and every
// request surfaces in the metrics registry and the audit store.
func New(opts ...Option) (*App, error) {
	a := &App{
		logger:     slog.Default(),
		configPath: "config.yaml",
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.cfg == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}

	if a.metrics == nil {
		a.metrics = metrics.New(a.cfg.Service.Version, a.cfg.Service.Environment)
	}

	if a.store == nil {
		store, err := openStore(a.cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = store
	}

	a.health = health.NewAggregator(a.cfg.Health.ProbeTimeout)
	a.health.Register("api", func(ctx context.Context) error { return nil })
	a.health.Register("database", a.store.Ping)
	for _, p := range a.probes {
		a.health.Register(p.name, p.probe)
	}

	srv, err := server.New(server.Options{
		Config:  a.cfg,
		Logger:  a.logger,
		Metrics: a.metrics,
		Health:  a.health,
		Store:   a.store,
	})
	if err != nil {
		return nil, fmt.Errorf("build server: %w", err)
	}
	a.server = srv

	return a, nil
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "none":
		return memory.New(0), nil
	case "sqlite", "":
		return sqldb.New(sqldb.Config{Driver: "sqlite", DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Start initializes telemetry and starts the HTTP server. It returns once
// the server is accepting connections in the background.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.telemetry == nil {
		tel, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:    a.cfg.Service.Name,
			ServiceVersion: a.cfg.Service.Version,
			Environment:    a.cfg.Service.Environment,
			Endpoint:       a.cfg.Telemetry.Endpoint,
			PublicKey:      a.cfg.Telemetry.PublicKey,
			SecretKey:      a.cfg.Telemetry.SecretKey,
			Stdout:         a.cfg.Telemetry.Stdout,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		a.telemetry = tel
	}

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.server.Router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	go func() {
		a.logger.Info("HTTP server listening", slog.Int("port", a.cfg.Server.Port))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	a.logger.Info("application started",
		slog.String("service", a.cfg.Service.Name),
		slog.String("version", a.cfg.Service.Version),
		slog.String("environment", a.cfg.Service.Environment),
		slog.String("api_prefix", a.cfg.Service.APIPrefix))

	return nil
}

// Shutdown gracefully stops the App: the server stops accepting connections
// and drains in-flight requests, buffered telemetry is flushed, and storage
// is closed. The first error encountered is returned; later steps still run.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("shutting down")

	var firstErr error

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			firstErr = err
		}
	}

	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.logger.Info("application shutdown complete")
	return firstErr
}

// Handler returns the root HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.server.Router
}

// MountAPI attaches an API router under the configured prefix.
func (a *App) MountAPI(h http.Handler) {
	a.server.MountAPI(h)
}
