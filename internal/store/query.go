package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"

	"modernc.org/sqlite"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/tags"
)

// Filter is a declarative search request. Every set clause must hold
// (AND); an unset clause does not constrain.
type Filter struct {
	// Keywords is matched case-insensitively as a substring of any of the
	// kind's keyword fields.
	Keywords string
	// Tags are matched exactly, combined per the kind's TagMatch.
	Tags []string
	// Equals holds categorical equality constraints. A nil value matches
	// rows where the field is unset.
	Equals map[string]any
	// Contains holds case-insensitive substring constraints on text fields.
	Contains map[string]string
	Ranges   []Range

	Limit  int
	Offset int
}

// Range bounds a numeric or date field. A nil bound is open.
type Range struct {
	Field string
	Min   any
	Max   any
}

// Query is compiled SQL with its bound arguments. Values never appear in
// SQL; identifiers come only from the kind descriptor.
type Query struct {
	SQL  string
	Args []any
}

// column describes a name a filter may refer to.
type column struct {
	expr    string
	typ     api.FieldType
	derived bool
}

func resolve(k *api.Kind, name string) (column, bool) {
	if f, ok := k.Field(name); ok {
		return column{expr: f.Name, typ: f.Type}, true
	}
	switch name {
	case "id":
		return column{expr: "id", typ: api.Integer}, true
	case "notes":
		return column{expr: "notes", typ: api.Text}, true
	case "added_at":
		return column{expr: "added_at", typ: api.Date}, true
	case "status":
		if k.HasStatus() {
			return column{expr: "status", typ: api.Text}, true
		}
	}
	if expr, ok := k.Derived[name]; ok {
		return column{expr: expr, typ: api.Real, derived: true}, true
	}
	return column{}, false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern lower-cases s to match against foldFunc(column).
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// foldFunc lower-cases text with full Unicode case mapping. SQLite's own
// LIKE folds ASCII letters only.
const foldFunc = "shelf_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, fold)
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	}
	return args[0], nil
}

func likeClause(expr string) string {
	return foldFunc + "(" + expr + `) LIKE ? ESCAPE '\'`
}

// Compile translates a filter into a parameterized SELECT for the kind.
// Unknown fields and ill-typed clauses are validation errors.
func Compile(k *api.Kind, f Filter) (Query, error) {
	var (
		where []string
		args  []any
	)

	if kw := strings.TrimSpace(f.Keywords); kw != "" {
		var or []string
		for _, c := range k.KeywordFields {
			or = append(or, likeClause(c))
			args = append(args, likePattern(kw))
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}

	if len(f.Tags) > 0 {
		if err := tags.Validate(f.Tags...); err != nil {
			return Query{}, invalid(k.Name, "tags", err)
		}
		want := tags.NewSet(f.Tags...).Sorted()
		joiner := " AND "
		if k.TagMatch == api.MatchAny {
			joiner = " OR "
		}
		var terms []string
		for _, t := range want {
			terms = append(terms, "instr(',' || tags || ',', ',' || ? || ',') > 0")
			args = append(args, t)
		}
		where = append(where, "("+strings.Join(terms, joiner)+")")
	}

	for _, name := range sortedKeys(f.Equals) {
		c, ok := resolve(k, name)
		if !ok || c.derived {
			return Query{}, invalid(k.Name, name, ErrUnknownField)
		}
		v, err := coerce(c.typ, f.Equals[name])
		if err != nil {
			return Query{}, invalid(k.Name, name, err)
		}
		if v == nil {
			where = append(where, c.expr+" IS NULL")
			continue
		}
		if name == "status" && !k.ValidStatus(fmt.Sprint(v)) {
			return Query{}, invalid(k.Name, name, fmt.Errorf("%w %q", ErrInvalidStatus, v))
		}
		where = append(where, c.expr+" = ?")
		args = append(args, v)
	}

	for _, name := range sortedKeys(f.Contains) {
		c, ok := resolve(k, name)
		if !ok || c.derived {
			return Query{}, invalid(k.Name, name, ErrUnknownField)
		}
		if c.typ != api.Text {
			return Query{}, invalid(k.Name, name, fmt.Errorf("%w: substring match needs a text field, have %s", ErrInvalidValue, c.typ))
		}
		sub := strings.TrimSpace(f.Contains[name])
		if sub == "" {
			continue
		}
		where = append(where, likeClause(c.expr))
		args = append(args, likePattern(sub))
	}

	for _, r := range f.Ranges {
		c, ok := resolve(k, r.Field)
		if !ok {
			return Query{}, invalid(k.Name, r.Field, ErrUnknownField)
		}
		if !c.typ.Ordered() {
			return Query{}, invalid(k.Name, r.Field, fmt.Errorf("%w: range needs a numeric or date field, have %s", ErrInvalidValue, c.typ))
		}
		for _, b := range []struct {
			op string
			v  any
		}{{">=", r.Min}, {"<=", r.Max}} {
			v, err := coerce(c.typ, b.v)
			if err != nil {
				return Query{}, invalid(k.Name, r.Field, err)
			}
			if v == nil {
				continue
			}
			where = append(where, fmt.Sprintf("%s %s ?", c.expr, b.op))
			args = append(args, v)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", selectList(k), k.Table)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy(k))

	switch {
	case f.Limit < 0 || f.Offset < 0:
		return Query{}, invalid(k.Name, "limit", fmt.Errorf("%w: negative limit or offset", ErrInvalidValue))
	case f.Limit > 0:
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	case f.Offset > 0:
		sb.WriteString(" LIMIT -1")
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, f.Offset)
	}

	return Query{SQL: sb.String(), Args: args}, nil
}

// orderBy renders the kind's default order with the row id as the final
// tie-break, so identical queries return identical sequences.
func orderBy(k *api.Kind) string {
	var terms []string
	for _, o := range k.Order {
		if o.Field == "id" {
			continue
		}
		c, ok := resolve(k, o.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, c.expr+" "+dir)
	}
	return strings.Join(append(terms, "id DESC"), ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Search returns the entities matching f in the kind's default order. A
// kind whose table does not exist yet yields no results.
func (s *Store) Search(ctx context.Context, k *api.Kind, f Filter) ([]Entity, error) {
	q, err := Compile(k, f)
	if err != nil {
		return nil, err
	}
	exists, err := s.TableExists(ctx, k)
	if err != nil || !exists {
		return nil, err
	}

	var out []Entity
	err = s.withRetry(ctx, "search "+k.Name, func() error {
		rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return err
		}
		out, err = scanEntities(k, rows)
		return err
	})
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, storageErr("search "+k.Name, err)
	}
	s.log.Debug("search", "kind", k.Name, "results", len(out))
	return out, nil
}
