package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/tags"
)

// Entity is a stored item. Callers get a copy; the store owns the row.
type Entity struct {
	ID      int64
	Kind    *api.Kind
	Fields  Record
	Tags    []string
	Notes   string
	Status  string
	AddedAt time.Time
}

// Key returns the first populated natural-key value.
func (e Entity) Key() string {
	for _, n := range e.Kind.NaturalKeys {
		if v, ok := e.Fields[n]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Title returns the entity's human title.
func (e Entity) Title() string {
	if v, ok := e.Fields[e.Kind.TitleField]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// Values flattens the entity into one map with every column of the kind
// present (nil when unset), tags in their persisted form and added_at as
// RFC 3339 text.
func (e Entity) Values() map[string]any {
	out := make(map[string]any, len(e.Kind.Fields)+5)
	out["id"] = e.ID
	for _, f := range e.Kind.Fields {
		out[f.Name] = e.Fields[f.Name]
	}
	out["tags"] = strings.Join(e.Tags, tags.Separator)
	out["notes"] = e.Notes
	if e.Kind.HasStatus() {
		out["status"] = e.Status
	}
	out["added_at"] = e.AddedAt.Format(time.RFC3339)
	return out
}

// selectList is the column list matching Kind.Columns.
func selectList(k *api.Kind) string {
	return strings.Join(k.Columns(), ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one row selected with selectList.
func scanEntity(k *api.Kind, sc scanner) (Entity, error) {
	cols := k.Columns()
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := sc.Scan(ptrs...); err != nil {
		return Entity{}, err
	}

	e := Entity{Kind: k, Fields: make(Record, len(k.Fields))}
	for i, c := range cols {
		v := raw[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		switch c {
		case "id":
			e.ID, _ = v.(int64)
		case "tags":
			s, _ := v.(string)
			e.Tags = tags.Parse(s).Sorted()
		case "notes":
			e.Notes, _ = v.(string)
		case "status":
			e.Status, _ = v.(string)
		case "added_at":
			s, _ := v.(string)
			e.AddedAt = parseTimestamp(s)
		default:
			if v == nil {
				continue
			}
			if f, ok := k.Field(c); ok && f.Type == api.Bool {
				n, _ := v.(int64)
				v = n != 0
			}
			e.Fields[c] = v
		}
	}
	return e, nil
}

func scanEntities(k *api.Kind, rows *sql.Rows) ([]Entity, error) {
	defer func() { _ = rows.Close() }()
	var out []Entity
	for rows.Next() {
		e, err := scanEntity(k, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", k.Name, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
