// Package ingest exports finished spans to a telemetry backend over HTTP.
// Batches are posted as JSON with the credential pair as basic auth, which
// is the ingestion contract of Langfuse-style observability backends.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultRequestTimeout = 10 * time.Second

// defaultTransport bounds the dial and handshake phases so a slow backend
// cannot hold an export goroutine past the request timeout.
var defaultTransport = &http.Transport{
	DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
	TLSHandshakeTimeout:   5 * time.Second,
	ResponseHeaderTimeout: defaultRequestTimeout,
	MaxIdleConns:          10,
	IdleConnTimeout:       90 * time.Second,
}

// Config carries the backend endpoint and credential pair.
type Config struct {
	Endpoint  string
	PublicKey string
	SecretKey string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Exporter ships span batches to the ingest endpoint.
type Exporter struct {
	endpoint  string
	publicKey string
	secretKey string
	client    *http.Client
	stopped   atomic.Bool
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)

func New(cfg Config) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ingest: endpoint required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: defaultTransport,
		}
	}
	return &Exporter{
		endpoint:  cfg.Endpoint,
		publicKey: cfg.PublicKey,
		secretKey: cfg.SecretKey,
		client:    client,
	}, nil
}

type spanPayload struct {
	TraceID           string         `json:"trace_id"`
	SpanID            string         `json:"span_id"`
	ParentSpanID      string         `json:"parent_span_id,omitempty"`
	Name              string         `json:"name"`
	Kind              string         `json:"kind"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	StatusCode        string         `json:"status_code"`
	StatusDescription string         `json:"status_description,omitempty"`
	Attributes        map[string]any `json:"attributes,omitempty"`
	Resource          map[string]any `json:"resource,omitempty"`
}

type batchPayload struct {
	Batch []spanPayload `json:"batch"`
}

// ExportSpans posts one batch. After Shutdown the batch is dropped and nil
// returned, per the SpanExporter contract.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() || len(spans) == 0 {
		return nil
	}

	payload := batchPayload{Batch: make([]spanPayload, 0, len(spans))}
	for _, s := range spans {
		payload.Batch = append(payload.Batch, convert(s))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ingest: marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ingest: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(e.publicKey, e.secretKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingest: send batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest: backend returned %s", resp.Status)
	}
	return nil
}

// Shutdown marks the exporter stopped. Later exports become no-ops.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	return nil
}

func convert(s sdktrace.ReadOnlySpan) spanPayload {
	sc := s.SpanContext()
	p := spanPayload{
		TraceID:           sc.TraceID().String(),
		SpanID:            sc.SpanID().String(),
		Name:              s.Name(),
		Kind:              s.SpanKind().String(),
		StartTime:         s.StartTime().UTC(),
		EndTime:           s.EndTime().UTC(),
		StatusCode:        s.Status().Code.String(),
		StatusDescription: s.Status().Description,
	}
	if parent := s.Parent(); parent.HasSpanID() {
		p.ParentSpanID = parent.SpanID().String()
	}
	if attrs := s.Attributes(); len(attrs) > 0 {
		p.Attributes = make(map[string]any, len(attrs))
		for _, kv := range attrs {
			p.Attributes[string(kv.Key)] = kv.Value.AsInterface()
		}
	}
	if res := s.Resource(); res != nil {
		attrs := res.Attributes()
		if len(attrs) > 0 {
			p.Resource = make(map[string]any, len(attrs))
			for _, kv := range attrs {
				p.Resource[string(kv.Key)] = kv.Value.AsInterface()
			}
		}
	}
	return p
}
