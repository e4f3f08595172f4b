// Package metrics records per-request measurements on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	buildInfo       *prometheus.GaugeVec
}

func New(version string, environment string) *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chassis_requests_total",
		Help: "Total HTTP requests",
	}, []string{"route", "method", "status"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chassis_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	requestErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chassis_request_errors_total",
		Help: "Total HTTP requests that failed",
	}, []string{"route", "method"})

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chassis_build_info",
		Help: "Build metadata",
	}, []string{"version", "environment"})

	registry.MustRegister(requests, requestDuration, requestErrors, buildInfo)
	buildInfo.WithLabelValues(version, environment).Set(1)

	return &Metrics{
		registry:        registry,
		requests:        requests,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
		buildInfo:       buildInfo,
	}
}

// ObserveRequest records exactly one sample for a finished request. Failed
// marks requests that panicked or were otherwise cut short; rejections and
// ordinary error statuses are recorded through the status label alone.
func (m *Metrics) ObserveRequest(route string, method string, status int, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	code := strconv.Itoa(status)
	m.requests.WithLabelValues(route, method, code).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
	if failed {
		m.requestErrors.WithLabelValues(route, method).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
