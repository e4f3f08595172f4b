package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/calyptra/chassis/internal/apierror"
)

// routeLimit applies the named rate-limit rule to a route. Endpoints whose
// rule is not configured are admitted unconditionally, so a missing entry in
// the config can slow nobody down. Rejections still flow back through the
// metrics middleware and are counted like any other response.
func (s *Server) routeLimit(rule string) func(http.Handler) http.Handler {
	limiter := s.limiters[rule]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			client := clientIP(r.RemoteAddr)
			decision := limiter.Allow(client, time.Now())
			if !decision.Allowed {
				Logger(r.Context()).Warn("rate limit exceeded",
					slog.String("rule", rule),
					slog.String("client", client),
					slog.String("limit", limiter.Rate().String()),
				)
				apierror.Write(w, apierror.ErrRateLimit(
					fmt.Sprintf("Rate limit exceeded: %s", limiter.Rate()),
				).WithRetryAfter(decision.RetryAfter))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
