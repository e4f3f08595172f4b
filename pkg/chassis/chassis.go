// Package chassis provides the public API for embedding the service chassis.
// This is the stable API for external consumers.
package chassis

import (
	"github.com/calyptra/chassis/internal/app"
)

// App wires configuration, storage, metrics, health checks, telemetry, and
// the HTTP server into one lifecycle. See internal/app.App for full
// documentation.
type App = app.App

// Option is a functional option for configuring an App.
type Option = app.Option

// New creates a new App with the given options.
// Example:
//
//	a, err := chassis.New(
//	    chassis.WithConfigPath("config.yaml"),
//	    chassis.WithLogger(logger),
//	)
var New = app.New

// Configuration options
var (
	// Config sources
	WithConfig     = app.WithConfig
	WithConfigPath = app.WithConfigPath

	// Collaborators
	WithLogger    = app.WithLogger
	WithStore     = app.WithStore
	WithMetrics   = app.WithMetrics
	WithTelemetry = app.WithTelemetry

	// Health
	WithHealthCheck = app.WithHealthCheck
)
