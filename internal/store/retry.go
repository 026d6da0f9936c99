package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// the attempt budget is spent. Only busy/locked errors are retried; the
// busy_timeout pragma has already waited inside each attempt.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := s.baseDelay
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		if attempt == s.maxRetries {
			break
		}
		s.log.Warn("database busy, retrying", "op", op, "attempt", attempt, "db", s.path, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &StorageError{Op: op, Err: ctx.Err()}
		case <-timer.C:
		}
		delay *= 2
	}
	return &StorageError{Op: op, Err: err}
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

// isBusy reports lock contention: SQLITE_BUSY or SQLITE_LOCKED, including
// their extended codes.
func isBusy(err error) bool {
	if code, ok := sqliteCode(err); ok {
		primary := code & 0xff
		return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
	}
	return false
}

// isUniqueViolation reports a UNIQUE constraint failure. Natural keys are
// the only UNIQUE columns, so this is the duplicate signal.
func isUniqueViolation(err error) bool {
	if code, ok := sqliteCode(err); ok {
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		if code&0xff != sqlite3.SQLITE_CONSTRAINT {
			return false
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isMissingTable reports a query against a table that was never created.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
