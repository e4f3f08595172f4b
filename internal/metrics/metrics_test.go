package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Request samples
// ============================================================================

func TestObserveRequest(t *testing.T) {
	m := New("1.2.3", "test")

	m.ObserveRequest("/", "GET", 200, 15*time.Millisecond, false)
	m.ObserveRequest("/", "GET", 200, 5*time.Millisecond, false)
	m.ObserveRequest("/health", "GET", 503, 2*time.Millisecond, false)
	m.ObserveRequest("/", "GET", 500, 1*time.Millisecond, true)

	text := scrape(t, m)

	if got := metricValue(t, text, `chassis_requests_total{method="GET",route="/",status="200"}`); got != 2 {
		t.Errorf("requests route=/ status=200 = %v, want 2", got)
	}
	if got := metricValue(t, text, `chassis_requests_total{method="GET",route="/health",status="503"}`); got != 1 {
		t.Errorf("requests route=/health status=503 = %v, want 1", got)
	}
	if got := metricValue(t, text, `chassis_request_errors_total{method="GET",route="/"}`); got != 1 {
		t.Errorf("request errors route=/ = %v, want 1", got)
	}
	if got := metricValue(t, text, `chassis_request_duration_seconds_count{method="GET",route="/"}`); got != 3 {
		t.Errorf("duration samples route=/ = %v, want 3", got)
	}
}

func TestObserveRequest_ErrorsOnlyOnFailure(t *testing.T) {
	m := New("1.2.3", "test")

	// A 429 or 500 status alone is not a failure sample.
	m.ObserveRequest("/", "GET", 429, time.Millisecond, false)
	m.ObserveRequest("/", "GET", 500, time.Millisecond, false)

	text := scrape(t, m)
	if strings.Contains(text, "chassis_request_errors_total{") {
		t.Error("error counter incremented without a failed request")
	}
}

func TestBuildInfo(t *testing.T) {
	m := New("1.2.3", "test")

	text := scrape(t, m)
	if got := metricValue(t, text, `chassis_build_info{environment="test",version="1.2.3"}`); got != 1 {
		t.Errorf("build info = %v, want 1", got)
	}
}

// ============================================================================
// Nil safety
// ============================================================================

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// Must not panic.
	m.ObserveRequest("/", "GET", 200, time.Millisecond, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("nil handler status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// ============================================================================
// Helpers
// ============================================================================

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d, want 200", rec.Code)
	}
	return rec.Body.String()
}

func metricValue(t *testing.T, text string, series string) float64 {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, series) {
			continue
		}
		parts := strings.Fields(line)
		value, err := strconv.ParseFloat(parts[len(parts)-1], 64)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		return value
	}
	t.Fatalf("series %s not found in:\n%s", series, text)
	return 0
}
