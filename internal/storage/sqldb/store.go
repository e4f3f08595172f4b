// Package sqldb is the SQL-backed request audit store.
package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/calyptra/chassis/internal/storage"
)

const defaultListLimit = 100

// Store persists request records through database/sql via sqlx.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite is the default
	DSN    string
}

// sqlitePragmas run once per connection pool before the schema is applied.
var sqlitePragmas = []string{
	`PRAGMA journal_mode = WAL`,
	`PRAGMA synchronous = NORMAL`,
	`PRAGMA foreign_keys = ON`,
}

// New opens the database, applies driver setup and ensures the schema.
func New(cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		for _, stmt := range sqlitePragmas {
			if _, err := db.Exec(stmt); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to execute pragma: %w", err)
			}
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite opens a SQLite-backed store at the given path.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS request_log (
id TEXT PRIMARY KEY,
request_id TEXT NOT NULL,
route TEXT NOT NULL,
method TEXT NOT NULL,
status INTEGER NOT NULL,
duration_ms INTEGER NOT NULL,
client_ip TEXT,
failed INTEGER NOT NULL DEFAULT 0,
created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_route ON request_log(route)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_created ON request_log(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RecordRequest appends one finished request to the audit log. Missing ID
// and timestamp are filled in.
func (s *Store) RecordRequest(ctx context.Context, rec *storage.RequestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := s.db.Rebind(`INSERT INTO request_log (id, request_id, route, method, status, duration_ms, client_ip, failed, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, rec.Route, rec.Method, rec.Status,
		rec.DurationMS, rec.ClientIP, rec.Failed, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// RecentRequests returns the newest records, most recent first.
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]storage.RequestRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.db.Rebind(`SELECT id, request_id, route, method, status, duration_ms, client_ip, failed, created_at
	          FROM request_log
	          ORDER BY created_at DESC
	          LIMIT ?`)

	var records []storage.RequestRecord
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query request log: %w", err)
	}
	return records, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
