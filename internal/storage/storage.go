// Package storage defines the request audit log consumed by the HTTP layer.
// Implementations live in subpackages; sqldb is the default.
package storage

import (
	"context"
	"time"
)

// RequestRecord is one finished request in the audit log.
type RequestRecord struct {
	ID         string    `db:"id" json:"id"`
	RequestID  string    `db:"request_id" json:"request_id"`
	Route      string    `db:"route" json:"route"`
	Method     string    `db:"method" json:"method"`
	Status     int       `db:"status" json:"status"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	ClientIP   string    `db:"client_ip" json:"client_ip"`
	Failed     bool      `db:"failed" json:"failed"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Store persists the audit log and answers the database health probe.
type Store interface {
	RecordRequest(ctx context.Context, rec *RequestRecord) error
	RecentRequests(ctx context.Context, limit int) ([]RequestRecord, error)
	Ping(ctx context.Context) error
	Close() error
}
