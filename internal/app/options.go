package app

import (
	"fmt"
	"log/slog"

	"github.com/calyptra/chassis/internal/config"
	"github.com/calyptra/chassis/internal/health"
	"github.com/calyptra/chassis/internal/metrics"
	"github.com/calyptra/chassis/internal/storage"
	"github.com/calyptra/chassis/internal/telemetry"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithConfig injects an already-loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		a.cfg = cfg
		return nil
	}
}

// WithConfigPath loads configuration from the given YAML file instead of
// the default config.yaml. Ignored when WithConfig is used.
func WithConfigPath(path string) Option {
	return func(a *App) error {
		a.configPath = path
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		a.logger = logger
		return nil
	}
}

// WithStore sets a custom audit store, overriding the configured driver.
func WithStore(store storage.Store) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}

// WithMetrics sets a custom metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) error {
		a.metrics = m
		return nil
	}
}

// WithTelemetry injects an already-initialized telemetry pipeline, for hosts
// that own their tracer provider. Start will not reinitialize it.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(a *App) error {
		a.telemetry = tel
		return nil
	}
}

// WithHealthCheck registers an additional health component, probed on every
// health check alongside the built-in api and database components.
func WithHealthCheck(name string, probe health.ProbeFunc) Option {
	return func(a *App) error {
		if name == "" {
			return fmt.Errorf("health check name must not be empty")
		}
		if probe == nil {
			return fmt.Errorf("health check probe must not be nil")
		}
		a.probes = append(a.probes, namedProbe{name: name, probe: probe})
		return nil
	}
}
