// Package server assembles the HTTP surface: the middleware spine shared by
// every route, the built-in endpoints, and the mount point for API routers.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/calyptra/chassis/internal/config"
	"github.com/calyptra/chassis/internal/health"
	"github.com/calyptra/chassis/internal/metrics"
	"github.com/calyptra/chassis/internal/ratelimit"
	"github.com/calyptra/chassis/internal/storage"
)

// Options carries the collaborators the server wires into its middleware.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Health  *health.Aggregator
	Store   storage.Store
}

type Server struct {
	Router *chi.Mux

	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	health   *health.Aggregator
	limiters map[string]*ratelimit.Limiter
}

// New builds the router. Middleware order is load-bearing: the metrics
// middleware sits inside the recoverer so a panicking handler is recorded
// as a failed 500 before the recoverer writes the client response, and the
// rate limiters sit innermost so rejections still pass through metrics and
// the completion log on the way out.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiters := make(map[string]*ratelimit.Limiter, len(opts.Config.RateLimits))
	for rule, spec := range opts.Config.RateLimits {
		rate, err := ratelimit.ParseRate(spec)
		if err != nil {
			return nil, fmt.Errorf("rate limit rule %q: %w", rule, err)
		}
		limiters[rule] = ratelimit.NewLimiter(rate)
	}

	s := &Server{
		cfg:      opts.Config,
		logger:   logger,
		metrics:  opts.Metrics,
		health:   opts.Health,
		limiters: limiters,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(ContextMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware(opts.Metrics, opts.Store, logger))
	r.Use(TimeoutMiddleware(opts.Config.Server.RequestTimeout))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, opts.Config.Service.Name)
	})

	r.With(s.routeLimit("root")).Get("/", s.handleRoot)
	r.With(s.routeLimit("health")).Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	s.Router = r
	return s, nil
}

// MountAPI attaches an API router under the configured prefix, governed by
// the "api" rate-limit rule when one is configured.
func (s *Server) MountAPI(h http.Handler) {
	s.Router.Route(s.cfg.Service.APIPrefix, func(r chi.Router) {
		r.Use(s.routeLimit("api"))
		r.Mount("/", h)
	})
}
