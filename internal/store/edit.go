package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/tags"
)

// Ref identifies one stored entity: by internal id, or by a natural-key
// value (with the key field given or guessed from the value).
type Ref struct {
	ID    int64
	Field string
	Value string
}

// ByID refers to an entity by its internal row id.
func ByID(id int64) Ref { return Ref{ID: id} }

// ByKey refers to an entity by a natural-key value; the kind guesses which
// key field it belongs to.
func ByKey(value string) Ref { return Ref{Value: value} }

// ByField refers to an entity by an explicit natural-key field.
func ByField(field, value string) Ref { return Ref{Field: field, Value: value} }

// ParseRef reads a user-supplied identifier: "#12" or "id:12" selects an
// internal id, "field=value" an explicit key field, anything else a
// natural-key value.
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	for _, p := range []string{"#", "id:"} {
		if rest, ok := strings.CutPrefix(s, p); ok {
			if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
				return ByID(id)
			}
		}
	}
	if field, value, ok := strings.Cut(s, "="); ok && field != "" && !strings.ContainsAny(field, "/:") {
		return ByField(field, value)
	}
	return ByKey(s)
}

func (r Ref) String() string {
	if r.ID > 0 {
		return fmt.Sprintf("#%d", r.ID)
	}
	if r.Field != "" {
		return r.Field + "=" + r.Value
	}
	return r.Value
}

// where returns the predicate selecting the referenced row.
func (r Ref) where(k *api.Kind) (string, any, error) {
	if r.ID > 0 {
		return "id = ?", r.ID, nil
	}
	v := strings.TrimSpace(r.Value)
	if v == "" {
		return "", nil, invalid(k.Name, "ref", ErrMissingNaturalKey)
	}
	field := r.Field
	if field == "" {
		field = k.GuessKey(v)
	}
	if !k.IsNaturalKey(field) {
		return "", nil, invalid(k.Name, field, fmt.Errorf("%w: not a natural key (want %s)", ErrUnknownField, strings.Join(k.NaturalKeys, ", ")))
	}
	return field + " = ?", v, nil
}

func notFound(k *api.Kind, r Ref) error {
	return fmt.Errorf("%s %s: %w", k.Name, r, ErrNotFound)
}

// Get returns the referenced entity or ErrNotFound.
func (s *Store) Get(ctx context.Context, k *api.Kind, r Ref) (Entity, error) {
	pred, arg, err := r.where(k)
	if err != nil {
		return Entity{}, err
	}
	exists, err := s.TableExists(ctx, k)
	if err != nil {
		return Entity{}, err
	}
	if !exists {
		return Entity{}, notFound(k, r)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectList(k), k.Table, pred)
	var e Entity
	err = s.withRetry(ctx, "get "+k.Name, func() error {
		var err error
		e, err = scanEntity(k, s.db.QueryRowContext(ctx, query, arg))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, notFound(k, r)
	}
	if err != nil {
		return Entity{}, storageErr("get "+k.Name, err)
	}
	return e, nil
}

// Delete removes the referenced entity. ErrNotFound if nothing matched.
func (s *Store) Delete(ctx context.Context, k *api.Kind, r Ref) error {
	pred, arg, err := r.where(k)
	if err != nil {
		return err
	}
	exists, err := s.TableExists(ctx, k)
	if err != nil {
		return err
	}
	if !exists {
		return notFound(k, r)
	}

	var n int64
	err = s.withRetry(ctx, "delete "+k.Name, func() error {
		res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", k.Table, pred), arg)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return storageErr("delete "+k.Name, err)
	}
	if n == 0 {
		s.log.Warn("delete target not found", "kind", k.Name, "ref", r.String())
		return notFound(k, r)
	}
	s.log.Info("deleted", "kind", k.Name, "ref", r.String())
	return nil
}

// Edit is a change to the mutable part of an entity. Core fields never
// change after creation.
type Edit struct {
	Tags tags.Edit
	// Notes nil leaves notes unchanged; a pointer to "" clears them.
	Notes *string
	// Status empty leaves status unchanged.
	Status string
}

// IsZero reports whether the edit changes nothing.
func (e Edit) IsZero() bool {
	return e.Tags.IsZero() && e.Notes == nil && e.Status == ""
}

func (e Edit) validate(k *api.Kind) error {
	if err := e.Tags.Validate(); err != nil {
		return invalid(k.Name, "tags", err)
	}
	return Annotation{Status: e.Status}.validate(k)
}

// Annotate applies an edit to the referenced entity in one
// read-modify-write transaction and returns the updated entity. An edit
// that supplies both a tag replacement and tag additions/removals is
// rejected with ErrConflictingEdit.
func (s *Store) Annotate(ctx context.Context, k *api.Kind, r Ref, e Edit) (Entity, error) {
	if err := e.validate(k); err != nil {
		return Entity{}, err
	}
	pred, arg, err := r.where(k)
	if err != nil {
		return Entity{}, err
	}
	exists, err := s.TableExists(ctx, k)
	if err != nil {
		return Entity{}, err
	}
	if !exists {
		return Entity{}, notFound(k, r)
	}

	var updated Entity
	err = s.tx(ctx, "annotate "+k.Name, func(tx *sql.Tx) error {
		cur, err := scanEntity(k, tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectList(k), k.Table, pred), arg))
		if err != nil {
			return err
		}

		next := tags.Serialize(tags.Apply(tags.NewSet(cur.Tags...), e.Tags))
		sets := []string{"tags = ?"}
		args := []any{next}
		if e.Notes != nil {
			sets = append(sets, "notes = ?")
			if *e.Notes == "" {
				args = append(args, nil)
			} else {
				args = append(args, *e.Notes)
			}
		}
		if e.Status != "" {
			sets = append(sets, "status = ?")
			args = append(args, e.Status)
		}
		args = append(args, cur.ID)
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", k.Table, strings.Join(sets, ", ")), args...); err != nil {
			return err
		}

		updated, err = scanEntity(k, tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectList(k), k.Table), cur.ID))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Warn("edit target not found", "kind", k.Name, "ref", r.String())
		return Entity{}, notFound(k, r)
	}
	if err != nil {
		return Entity{}, storageErr("annotate "+k.Name, err)
	}
	s.log.Info("updated", "kind", k.Name, "ref", r.String(), "tags", strings.Join(updated.Tags, ","))
	return updated, nil
}
