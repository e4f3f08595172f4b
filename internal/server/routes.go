package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/calyptra/chassis/internal/health"
)

type rootResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Status      string `json:"status"`
	Environment string `json:"environment"`
	SwaggerURL  string `json:"swagger_url"`
	RedocURL    string `json:"redoc_url"`
}

type healthResponse struct {
	Status      string                   `json:"status"`
	Version     string                   `json:"version"`
	Environment string                   `json:"environment"`
	Components  map[string]health.Status `json:"components"`
	Timestamp   time.Time                `json:"timestamp"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	Logger(r.Context()).Info("root endpoint called")

	writeJSON(w, http.StatusOK, rootResponse{
		Name:        s.cfg.Service.Name,
		Version:     s.cfg.Service.Version,
		Status:      string(health.StatusHealthy),
		Environment: s.cfg.Service.Environment,
		SwaggerURL:  "/docs",
		RedocURL:    "/redoc",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	Logger(r.Context()).Info("health check called")

	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
		AddLogField(r.Context(), "health_status", string(report.Status))
	}

	writeJSON(w, status, healthResponse{
		Status:      string(report.Status),
		Version:     s.cfg.Service.Version,
		Environment: s.cfg.Service.Environment,
		Components:  report.Components,
		Timestamp:   report.Timestamp,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
