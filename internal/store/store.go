// Package store persists research entities (papers, grants, job postings)
// in an embedded SQLite database. One generic implementation serves every
// kind described by an api.Kind: schema creation, de-duplicating inserts,
// best-effort batch import, declarative search, annotation and stats.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultBusyTimeout is how long a connection waits on the write lock
	// before SQLite reports SQLITE_BUSY.
	DefaultBusyTimeout = 30 * time.Second
	// DefaultMaxRetries bounds the connection-layer retries on a busy or
	// locked database.
	DefaultMaxRetries = 5

	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBusyTimeout sets the per-connection lock wait.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff used when
// the database stays locked past the busy timeout.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.maxRetries = attempts
		}
		if baseDelay > 0 {
			s.baseDelay = baseDelay
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is one SQLite database file holding one table per kind.
// It is safe for concurrent use; SQLite serializes writers.
type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger

	busyTimeout time.Duration
	maxRetries  int
	baseDelay   time.Duration
	now         func() time.Time

	// ensured holds table names whose schema has been created by this store.
	ensured sync.Map
}

// Open opens (creating if needed) the database at path. The containing
// directory is created when missing.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:        path,
		log:         slog.Default(),
		busyTimeout: DefaultBusyTimeout,
		maxRetries:  DefaultMaxRetries,
		baseDelay:   50 * time.Millisecond,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s.db = db
	return s, nil
}

// dsn applies pragmas through the driver so that every pooled connection
// gets them, not just the first one.
func (s *Store) dsn() string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		s.path, s.busyTimeout.Milliseconds())
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTimestamp(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// Rows written by other tools may use plain RFC 3339.
		t, _ = time.Parse(time.RFC3339Nano, v)
	}
	return t
}

// tx runs fn inside one transaction, retrying the whole transaction when
// the database is busy.
func (s *Store) tx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	return s.withRetry(ctx, op, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
