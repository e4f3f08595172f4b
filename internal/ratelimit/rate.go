// Package ratelimit implements fixed-window admission control keyed by
// client identity. Each configured rule ("10/minute", "100 per hour") gets
// its own limiter; requests beyond the allowance within the current window
// are rejected until the window rolls over.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is a parsed rule: at most Limit requests per Window.
type Rate struct {
	Limit  int
	Window time.Duration

	raw string
}

// ParseRate parses rule strings of the form "N/interval" or "N per interval".
// Recognized intervals are second, minute, hour and day, including common
// abbreviations ("10/min", "5 per s").
func ParseRate(s string) (Rate, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Rate{}, fmt.Errorf("invalid rate %q: empty rule", s)
	}

	var count, interval string
	if before, after, ok := strings.Cut(trimmed, "/"); ok {
		count, interval = before, after
	} else if before, after, ok := strings.Cut(trimmed, " per "); ok {
		count, interval = before, after
	} else {
		return Rate{}, fmt.Errorf("invalid rate %q: expected \"N/interval\" or \"N per interval\"", s)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate %q: count %q is not an integer", s, strings.TrimSpace(count))
	}
	if limit <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q: count must be positive", s)
	}

	window, err := parseInterval(strings.TrimSpace(interval))
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate %q: %w", s, err)
	}

	return Rate{Limit: limit, Window: window, raw: trimmed}, nil
}

func parseInterval(name string) (time.Duration, error) {
	switch strings.ToLower(name) {
	case "second", "seconds", "sec", "s":
		return time.Second, nil
	case "minute", "minutes", "min", "m":
		return time.Minute, nil
	case "hour", "hours", "hr", "h":
		return time.Hour, nil
	case "day", "days", "d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown interval %q", name)
	}
}

// String returns the rule as it was written, or a canonical form for rates
// constructed directly.
func (r Rate) String() string {
	if r.raw != "" {
		return r.raw
	}
	return fmt.Sprintf("%d per %s", r.Limit, intervalName(r.Window))
}

func intervalName(w time.Duration) string {
	switch w {
	case time.Second:
		return "second"
	case time.Minute:
		return "minute"
	case time.Hour:
		return "hour"
	case 24 * time.Hour:
		return "day"
	default:
		return w.String()
	}
}
