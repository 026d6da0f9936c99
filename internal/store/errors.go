package store

import (
	"errors"
	"fmt"

	"github.com/agentic-research/shelf/internal/tags"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrMissingNaturalKey means none of the kind's natural-key fields is set.
	ErrMissingNaturalKey = errors.New("no natural key")
	// ErrMissingField means a required field is absent.
	ErrMissingField = errors.New("required field missing")
	// ErrUnknownField means a filter or lookup named a field the kind lacks.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue means a value could not be coerced to the field type.
	ErrInvalidValue = errors.New("invalid value")
	// ErrInvalidStatus means a status outside the kind's enumeration.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrConflictingEdit is re-exported from the tag algebra.
	ErrConflictingEdit = tags.ErrConflictingEdit

	// ErrNotFound means an edit, get or delete target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStorage matches every StorageError.
	ErrStorage = errors.New("storage failure")
)

// ValidationError is a caller error; it is never retried.
type ValidationError struct {
	Kind  string
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(kind, field string, err error) error {
	return &ValidationError{Kind: kind, Field: field, Err: err}
}

// StorageError is an I/O, lock-timeout or constraint failure unrelated to
// the natural key. No partial row is left behind.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// SchemaError means a kind's table could not be initialized. Callers must
// not read or write that kind afterwards.
type SchemaError struct {
	Kind string
	Err  error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("init schema %s: %v", e.Kind, e.Err) }

func (e *SchemaError) Unwrap() error { return e.Err }
