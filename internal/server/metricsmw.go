package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calyptra/chassis/internal/metrics"
	"github.com/calyptra/chassis/internal/storage"
)

// MetricsMiddleware records exactly one sample per request. Panics are
// recorded as a failed 500 and re-raised for the recoverer above; rate-limit
// rejections and error statuses arrive here as ordinary responses.
func MetricsMiddleware(m *metrics.Metrics, store storage.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			record := func(status int, failed bool) {
				route := routePattern(r)
				duration := time.Since(start)
				m.ObserveRequest(route, r.Method, status, duration, failed)

				if store == nil {
					return
				}
				rec := &storage.RequestRecord{
					RequestID:  GetRequestID(r.Context()),
					Route:      route,
					Method:     r.Method,
					Status:     status,
					DurationMS: duration.Milliseconds(),
					ClientIP:   clientIP(r.RemoteAddr),
					Failed:     failed,
				}
				if err := store.RecordRequest(r.Context(), rec); err != nil {
					logger.Warn("audit record failed", slog.String("error", err.Error()))
				}
			}

			defer func() {
				if rvr := recover(); rvr != nil {
					record(http.StatusInternalServerError, true)
					panic(rvr)
				}
			}()

			next.ServeHTTP(wrapped, r)
			record(wrapped.statusCode, false)
		})
	}
}

// routePattern resolves the matched chi route pattern, available once
// routing has run. Unrouted requests share one label to keep metric
// cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
