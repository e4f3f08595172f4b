package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// contextKey is the key type for request-scoped values.
type contextKey string

const RequestIDKey contextKey = "request_id"

type (
	requestContextKey struct{}
	logFieldsKey      struct{}
	loggerKey         struct{}
)

// RequestContext carries the identity of one in-flight request. It is built
// by ContextMiddleware and available to every handler below it.
type RequestContext struct {
	ID        string
	ClientIP  string
	Method    string
	Path      string
	StartedAt time.Time
}

// RequestIDMiddleware assigns each request a unique ID, stored in the
// context and echoed as the X-Request-ID response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
// Returns an empty string if no request ID is set.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// ContextMiddleware builds the RequestContext, binds a request-scoped logger
// and emits the start and completion log events. The completion log runs in
// a defer so it fires even when a panic is unwinding past this middleware.
func ContextMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := &RequestContext{
				ID:        GetRequestID(r.Context()),
				ClientIP:  clientIP(r.RemoteAddr),
				Method:    r.Method,
				Path:      r.URL.Path,
				StartedAt: time.Now(),
			}
			if rc.ID == "" {
				rc.ID = uuid.New().String()
			}

			reqLogger := logger.With(
				slog.String("request_id", rc.ID),
				slog.String("client", rc.ClientIP),
				slog.String("method", rc.Method),
				slog.String("path", rc.Path),
			)

			// Mutable log fields handlers may enrich before completion.
			fields := make(map[string]string)

			ctx := context.WithValue(r.Context(), requestContextKey{}, rc)
			ctx = context.WithValue(ctx, logFieldsKey{}, fields)
			ctx = context.WithValue(ctx, loggerKey{}, reqLogger)

			reqLogger.Info("request started")

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				attrs := []slog.Attr{
					slog.Int("status", wrapped.statusCode),
					slog.Duration("duration", time.Since(rc.StartedAt)),
				}
				for k, v := range fields {
					attrs = append(attrs, slog.String(k, v))
				}
				reqLogger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}
}

// RequestFrom returns the RequestContext, or nil outside the middleware.
func RequestFrom(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return rc
	}
	return nil
}

// Logger returns the request-scoped logger, falling back to the process
// default outside the middleware.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// AddLogField attaches a key/value to the request-scoped log fields so the
// completion log emits it. Safe to call multiple times. No-op outside the
// middleware.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey{}).(map[string]string); ok {
		fields[key] = value
	}
}

// AddError attaches an error message to the request-scoped log fields so it
// appears in the completion log. No-op if err is nil.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}

// TimeoutMiddleware bounds each request's context. Handlers are expected to
// honor cancellation; the request is not forcibly terminated.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards Flush to the underlying ResponseWriter if it supports
// http.Flusher, preserving streaming support.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
