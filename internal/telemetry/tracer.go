// Package telemetry owns the tracing lifecycle: exporter selection at
// startup, span emission while serving, and the bounded flush on shutdown.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/calyptra/chassis/internal/telemetry/ingest"
)

const defaultFlushTimeout = 10 * time.Second

// Config selects the exporter. When the endpoint and both keys are present
// spans ship to the ingest backend; otherwise Stdout picks the development
// exporter, and with neither the provider stays a no-op that still hands
// out valid tracers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Endpoint  string
	PublicKey string
	SecretKey string
	Stdout    bool

	FlushTimeout time.Duration
}

// Telemetry is the running tracing stack. The zero value and nil are usable
// no-ops, so callers never need to branch on whether export is configured.
type Telemetry struct {
	tp           *sdktrace.TracerProvider
	logger       *slog.Logger
	flushTimeout time.Duration
}

func (c Config) credentialed() bool {
	return c.Endpoint != "" && c.PublicKey != "" && c.SecretKey != ""
}

// Init wires the tracer provider and installs it as the global. Missing
// credentials are not an error: emission simply goes nowhere.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	flushTimeout := cfg.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch {
	case cfg.credentialed():
		exporter, err := ingest.New(ingest.Config{
			Endpoint:  cfg.Endpoint,
			PublicKey: cfg.PublicKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("telemetry export enabled", slog.String("endpoint", cfg.Endpoint))
	case cfg.Stdout:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	default:
		logger.Info("telemetry credentials not configured, spans will not be exported")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("telemetry export failed", slog.String("error", err.Error()))
	}))

	return &Telemetry{
		tp:           tp,
		logger:       logger,
		flushTimeout: flushTimeout,
	}, nil
}

// Tracer returns a named tracer. Works on a nil receiver.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	if t == nil || t.tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return t.tp.Tracer(name)
}

// Shutdown flushes buffered spans and stops the provider. Flush is bounded:
// when the caller's context carries no deadline one is added so shutdown
// can never hang on a stuck backend.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.tp == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.flushTimeout)
		defer cancel()
	}

	if err := t.tp.ForceFlush(ctx); err != nil {
		t.logger.Warn("telemetry flush incomplete", slog.String("error", err.Error()))
	}
	return t.tp.Shutdown(ctx)
}
