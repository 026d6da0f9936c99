package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/tags"
)

// Outcome is the non-error result of an upsert.
type Outcome int

const (
	// Created means a new row was written.
	Created Outcome = iota
	// DuplicateSkipped means a row with the same natural key already exists;
	// it was left untouched.
	DuplicateSkipped
)

func (o Outcome) String() string {
	if o == DuplicateSkipped {
		return "duplicate"
	}
	return "created"
}

// Annotation is what the caller attaches to records on save.
type Annotation struct {
	Tags  []string
	Notes string
	// Status applies to kinds with a status enumeration; empty means the
	// kind's default.
	Status string
	// Defaults fill fields the record leaves empty (e.g. a platform name
	// for a whole batch).
	Defaults Record
}

func (a Annotation) validate(k *api.Kind) error {
	if err := tags.Validate(a.Tags...); err != nil {
		return invalid(k.Name, "tags", err)
	}
	if a.Status == "" {
		return nil
	}
	if !k.HasStatus() {
		return invalid(k.Name, "status", fmt.Errorf("%w: %s has no status", ErrInvalidStatus, k.Plural))
	}
	if !k.ValidStatus(a.Status) {
		return invalid(k.Name, "status", fmt.Errorf("%w %q (want one of %s)", ErrInvalidStatus, a.Status, strings.Join(k.Statuses, ", ")))
	}
	return nil
}

// UpsertResult reports what happened to one record.
type UpsertResult struct {
	Outcome Outcome
	// ID is the new row id when Outcome is Created.
	ID int64
	// Key is the natural-key value the record was identified by.
	Key string
}

// Upsert inserts rec unless an entity with the same natural key exists.
// It never overwrites: a duplicate returns DuplicateSkipped and leaves the
// stored row, including its notes and tags, as it was.
func (s *Store) Upsert(ctx context.Context, k *api.Kind, rec Record, a Annotation) (UpsertResult, error) {
	if err := a.validate(k); err != nil {
		return UpsertResult{}, err
	}
	r, err := prepare(k, rec, a.Defaults)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := s.EnsureSchema(ctx, k); err != nil {
		return UpsertResult{}, err
	}
	return s.insert(ctx, k, r, a)
}

func (s *Store) insert(ctx context.Context, k *api.Kind, r row, a Annotation) (UpsertResult, error) {
	cols := append([]string{}, r.cols...)
	vals := append([]any{}, r.vals...)

	cols = append(cols, "tags", "notes")
	var notes any
	if a.Notes != "" {
		notes = a.Notes
	}
	vals = append(vals, tags.Canonical(a.Tags), notes)
	if k.HasStatus() {
		status := a.Status
		if status == "" {
			status = k.DefaultStatus
		}
		cols = append(cols, "status")
		vals = append(vals, status)
	}
	cols = append(cols, "added_at")
	vals = append(vals, s.timestamp())

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		k.Table, strings.Join(cols, ", "), placeholders(len(cols)))

	var id int64
	err := s.withRetry(ctx, "insert "+k.Name, func() error {
		res, err := s.db.ExecContext(ctx, query, vals...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	switch {
	case err == nil:
		s.log.Debug("saved", "kind", k.Name, "key", r.key, "id", id)
		return UpsertResult{Outcome: Created, ID: id, Key: r.key}, nil
	case isUniqueViolation(err):
		s.log.Debug("skipped duplicate", "kind", k.Name, "key", r.key)
		return UpsertResult{Outcome: DuplicateSkipped, Key: r.key}, nil
	default:
		return UpsertResult{}, storageErr("insert "+k.Name, err)
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
