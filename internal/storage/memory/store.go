// Package memory is an in-memory request audit store, used when the service
// runs without a database. The newest records win; older ones fall off once
// capacity is reached.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calyptra/chassis/internal/storage"
)

const defaultCapacity = 1000

// Store keeps request records in a fixed-size ring.
type Store struct {
	mu    sync.RWMutex
	ring  []storage.RequestRecord
	next  int
	count int
}

var _ storage.Store = (*Store)(nil)

// New creates a store holding at most capacity records. Zero or negative
// capacity uses the default.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{ring: make([]storage.RequestRecord, capacity)}
}

func (s *Store) RecordRequest(ctx context.Context, rec *storage.RequestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.next] = *rec
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	return nil
}

// RecentRequests returns the newest records, most recent first.
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]storage.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.count {
		limit = s.count
	}

	n := len(s.ring)
	out := make([]storage.RequestRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := ((s.next-1-i)%n + n) % n
		out = append(out, s.ring[idx])
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}
