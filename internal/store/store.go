// Package store provides SQLite persistence for users, the
// portfolio/project/building hierarchy, processed inspections, trade
// mappings, the defect workflow and the audit log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database handle.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// DefaultBusyTimeout is the SQLite busy handler timeout used when the
// caller passes zero.
const DefaultBusyTimeout = 10 * time.Second

// Open opens (creating if necessary) the SQLite database at path and
// runs schema migrations.
func Open(path string, busyTimeout time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "store"))

	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so the driver applies them to every pooled
	// connection; foreign-key cascades must hold regardless of which
	// connection runs a delete.
	dsn := path + "?" + strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
	}, "&")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer plus concurrent readers under WAL.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the raw handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// now returns the canonical timestamp used for all writes. Timestamps
// are always set from Go so they scan back into time.Time cleanly.
func now() time.Time {
	return time.Now().UTC()
}

// nullTime converts a *time.Time to a driver-friendly value.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
