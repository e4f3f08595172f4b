package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ============================================================================
// Aggregation
// ============================================================================

func TestCheck_AllHealthy(t *testing.T) {
	a := NewAggregator(time.Second)
	a.Register("api", func(ctx context.Context) error { return nil })
	a.Register("database", func(ctx context.Context) error { return nil })

	report := a.Check(context.Background())

	if report.Status != StatusHealthy {
		t.Errorf("status = %q, want %q", report.Status, StatusHealthy)
	}
	if got := report.Components["api"]; got != StatusHealthy {
		t.Errorf("api = %q, want %q", got, StatusHealthy)
	}
	if got := report.Components["database"]; got != StatusHealthy {
		t.Errorf("database = %q, want %q", got, StatusHealthy)
	}
	if report.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestCheck_FailingComponentDegrades(t *testing.T) {
	a := NewAggregator(time.Second)
	a.Register("api", func(ctx context.Context) error { return nil })
	a.Register("database", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	report := a.Check(context.Background())

	// A failing dependency degrades the service; the process itself is
	// still serving, so the top-level status is never "unhealthy".
	if report.Status != StatusDegraded {
		t.Errorf("status = %q, want %q", report.Status, StatusDegraded)
	}
	if got := report.Components["database"]; got != StatusUnhealthy {
		t.Errorf("database = %q, want %q", got, StatusUnhealthy)
	}
	if got := report.Components["api"]; got != StatusHealthy {
		t.Errorf("api = %q, want %q", got, StatusHealthy)
	}
}

func TestCheck_AllFailingStillDegraded(t *testing.T) {
	a := NewAggregator(time.Second)
	a.Register("api", func(ctx context.Context) error { return errors.New("down") })
	a.Register("database", func(ctx context.Context) error { return errors.New("down") })

	report := a.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("status = %q, want %q", report.Status, StatusDegraded)
	}
}

func TestCheck_NoChecks(t *testing.T) {
	a := NewAggregator(time.Second)

	report := a.Check(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("status = %q, want %q", report.Status, StatusHealthy)
	}
	if len(report.Components) != 0 {
		t.Errorf("components = %v, want none", report.Components)
	}
}

// ============================================================================
// Probe isolation
// ============================================================================

func TestCheck_PanickingProbe(t *testing.T) {
	a := NewAggregator(time.Second)
	a.Register("api", func(ctx context.Context) error { return nil })
	a.Register("database", func(ctx context.Context) error {
		panic("nil pointer somewhere in the driver")
	})

	report := a.Check(context.Background())

	if report.Status != StatusDegraded {
		t.Errorf("status = %q, want %q", report.Status, StatusDegraded)
	}
	if got := report.Components["database"]; got != StatusUnhealthy {
		t.Errorf("database = %q, want %q", got, StatusUnhealthy)
	}
	if got := report.Components["api"]; got != StatusHealthy {
		t.Errorf("api should be unaffected, got %q", got)
	}
}

func TestCheck_SlowProbeIsBounded(t *testing.T) {
	a := NewAggregator(50 * time.Millisecond)
	a.Register("database", func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	report := a.Check(context.Background())
	elapsed := time.Since(start)

	if report.Status != StatusDegraded {
		t.Errorf("status = %q, want %q", report.Status, StatusDegraded)
	}
	if elapsed > time.Second {
		t.Errorf("check took %v, should be bounded by the probe timeout", elapsed)
	}
}

func TestCheck_ProbesRunConcurrently(t *testing.T) {
	const probeSleep = 100 * time.Millisecond

	a := NewAggregator(time.Second)
	for _, name := range []string{"api", "database", "cache"} {
		a.Register(name, func(ctx context.Context) error {
			time.Sleep(probeSleep)
			return nil
		})
	}

	start := time.Now()
	report := a.Check(context.Background())
	elapsed := time.Since(start)

	if report.Status != StatusHealthy {
		t.Fatalf("status = %q, want %q", report.Status, StatusHealthy)
	}
	// Three sequential probes would take ~300ms.
	if elapsed > 250*time.Millisecond {
		t.Errorf("check took %v, probes do not appear to run in parallel", elapsed)
	}
}
