package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calyptra/chassis/internal/config"
	"github.com/calyptra/chassis/internal/health"
)

func testAppConfig(port int) *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{
			Name:        "chassis",
			Version:     "0.1.0",
			Environment: "test",
			APIPrefix:   "/api/v1",
		},
		Server: config.ServerConfig{
			Port:            port,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: config.StorageConfig{Driver: "none"},
		Health:  config.HealthConfig{ProbeTimeout: time.Second},
		RateLimits: map[string]string{
			"root": "100/minute",
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestApp_New_Defaults(t *testing.T) {
	a, err := New(
		WithConfig(testAppConfig(18090)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a == nil {
		t.Fatal("New returned nil app")
	}

	// Verify defaults were set
	if a.store == nil {
		t.Error("Expected default store")
	}
	if a.metrics == nil {
		t.Error("Expected default metrics")
	}
	if a.health == nil {
		t.Error("Expected health aggregator")
	}
	if a.server == nil {
		t.Error("Expected server")
	}
}

func TestApp_New_NilConfigOption(t *testing.T) {
	_, err := New(WithConfig(nil))
	if err == nil {
		t.Fatal("Expected error for nil config")
	}
	if !strings.Contains(err.Error(), "apply option") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestApp_New_MissingConfigFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("CHASSIS_STORAGE__DRIVER", "none")

	a, err := New(
		WithConfigPath("does-not-exist.yaml"),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.cfg.Service.Name != "chassis" {
		t.Errorf("Service name = %q, want chassis default", a.cfg.Service.Name)
	}
	if a.cfg.Storage.Driver != "none" {
		t.Errorf("Storage driver = %q, want env override", a.cfg.Storage.Driver)
	}
}

func TestApp_HandlerServesRoutes(t *testing.T) {
	a, err := New(
		WithConfig(testAppConfig(18090)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Name != "chassis" {
		t.Errorf("Name = %q, want chassis", resp.Name)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", resp.Status)
	}
}

func TestApp_HealthIncludesRegisteredComponents(t *testing.T) {
	a, err := New(
		WithConfig(testAppConfig(18090)),
		WithLogger(quietLogger()),
		WithHealthCheck("cache", func(ctx context.Context) error {
			return context.DeadlineExceeded
		}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	var resp struct {
		Status     string                   `json:"status"`
		Components map[string]health.Status `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Components["cache"] != health.StatusUnhealthy {
		t.Errorf("Components[cache] = %q, want unhealthy", resp.Components["cache"])
	}
	if resp.Components["database"] != health.StatusHealthy {
		t.Errorf("Components[database] = %q, want healthy", resp.Components["database"])
	}
}

func TestApp_MountAPI(t *testing.T) {
	a, err := New(
		WithConfig(testAppConfig(18090)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	api := chi.NewRouter()
	api.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	a.MountAPI(api)

	req := httptest.NewRequest("GET", "/api/v1/ping", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestApp_Start_And_Shutdown(t *testing.T) {
	a, err := New(
		WithConfig(testAppConfig(18091)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	if a.httpServer == nil {
		t.Error("Expected server to be created")
	}
	if a.telemetry == nil {
		t.Error("Expected telemetry to be initialized")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestApp_ShutdownWithoutStart(t *testing.T) {
	a, err := New(
		WithConfig(testAppConfig(18090)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}
