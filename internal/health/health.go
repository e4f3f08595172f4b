// Package health aggregates component probes into a single service report.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is a component or service condition.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultProbeTimeout = 2 * time.Second

// ProbeFunc checks one component. A nil return means healthy.
type ProbeFunc func(ctx context.Context) error

// Check pairs a component name with its probe.
type Check struct {
	Name  string
	Probe ProbeFunc
}

// Report is the aggregate of one probe round.
type Report struct {
	Status     Status            `json:"status"`
	Components map[string]Status `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Aggregator runs registered probes concurrently, each bounded by the probe
// timeout. The service is healthy only when every component is healthy; any
// failing component degrades the service rather than marking it unhealthy
// outright, since the process is still serving.
type Aggregator struct {
	mu           sync.RWMutex
	checks       []Check
	probeTimeout time.Duration
}

func NewAggregator(probeTimeout time.Duration) *Aggregator {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Aggregator{probeTimeout: probeTimeout}
}

// Register adds a named component probe. Safe to call while the aggregator
// is serving.
func (a *Aggregator) Register(name string, probe ProbeFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks = append(a.checks, Check{Name: name, Probe: probe})
}

// Check probes every component and folds the results into a Report.
func (a *Aggregator) Check(ctx context.Context) Report {
	a.mu.RLock()
	checks := make([]Check, len(a.checks))
	copy(checks, a.checks)
	a.mu.RUnlock()

	var (
		mu         sync.Mutex
		components = make(map[string]Status, len(checks))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			status := StatusHealthy
			if err := a.runProbe(gctx, c.Probe); err != nil {
				status = StatusUnhealthy
			}
			mu.Lock()
			components[c.Name] = status
			mu.Unlock()
			// Failures surface through the report, never the group. One
			// bad component must not cancel the remaining probes.
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, s := range components {
		if s != StatusHealthy {
			overall = StatusDegraded
			break
		}
	}

	return Report{
		Status:     overall,
		Components: components,
		Timestamp:  time.Now().UTC(),
	}
}

// runProbe bounds one probe by the configured timeout and converts panics
// into failures.
func (a *Aggregator) runProbe(ctx context.Context, probe ProbeFunc) error {
	pctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("probe panicked: %v", r)
			}
		}()
		done <- probe(pctx)
	}()

	select {
	case err := <-done:
		return err
	case <-pctx.Done():
		return pctx.Err()
	}
}
