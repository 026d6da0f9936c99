package api

import "strings"

// FieldType is the storage type of a core field.
type FieldType int

const (
	Text FieldType = iota
	Integer
	Real
	Bool
	// Date is stored as ISO-8601 text so lexical order is chronological order.
	Date
)

func (t FieldType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Bool:
		return "bool"
	case Date:
		return "date"
	default:
		return "text"
	}
}

// SQLType returns the SQLite column affinity for the type.
func (t FieldType) SQLType() string {
	switch t {
	case Integer, Bool:
		return "INTEGER"
	case Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Ordered reports whether range filters make sense on the type.
func (t FieldType) Ordered() bool {
	return t == Integer || t == Real || t == Date
}

// TagMatch selects how a multi-tag filter is combined.
type TagMatch int

const (
	// MatchAll requires every requested tag to be present.
	MatchAll TagMatch = iota
	// MatchAny requires at least one requested tag to be present.
	MatchAny
)

func (m TagMatch) String() string {
	if m == MatchAny {
		return "any"
	}
	return "all"
}

// Field is one core column of a kind.
type Field struct {
	Name string
	Type FieldType
	// Indexed adds a secondary index on the column.
	Indexed bool
	// Required fields must be present on insert (NOT NULL).
	Required bool
	// Default is applied when an incoming record omits the field.
	Default any
}

// OrderTerm is one term of a kind's default result ordering.
type OrderTerm struct {
	Field string
	Desc  bool
}

// Group is a categorical field reported by stats.
type Group struct {
	Field string
	// Limit caps the number of buckets (0 = all).
	Limit int
	// ByValue orders buckets by the field value descending instead of by count.
	ByValue bool
}

// Kind describes one entity collection: its columns, natural key,
// search behaviour and stats. The store is generic over Kind.
type Kind struct {
	Name   string
	Plural string
	Table  string

	Fields []Field
	// NaturalKeys are the externally meaningful identifiers. Each is UNIQUE
	// and at least one must be non-empty.
	NaturalKeys []string
	// KeyGuess picks the natural-key column for a bare identifier when the
	// kind has more than one. Nil means the first natural key.
	KeyGuess func(value string) string
	// TitleField is the short human title.
	TitleField string

	KeywordFields []string
	TagMatch      TagMatch
	Order         []OrderTerm

	// Derived are read-only numeric fields usable in range filters only.
	// Values are fixed SQL expressions over the kind's own columns.
	Derived map[string]string

	Groups   []Group
	Flags    []string
	SumField string

	Statuses      []string
	DefaultStatus string

	// Summary is a text/template rendering one entity for text reports.
	Summary string
}

// Field returns the named core field.
func (k *Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsNaturalKey reports whether name is one of the kind's natural keys.
func (k *Kind) IsNaturalKey(name string) bool {
	for _, n := range k.NaturalKeys {
		if n == name {
			return true
		}
	}
	return false
}

// HasStatus reports whether entities of this kind carry a workflow status.
func (k *Kind) HasStatus() bool {
	return len(k.Statuses) > 0
}

// ValidStatus reports whether s is in the kind's status enumeration.
func (k *Kind) ValidStatus(s string) bool {
	for _, v := range k.Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// GuessKey returns the natural-key column an identifier most likely refers to.
func (k *Kind) GuessKey(value string) string {
	if k.KeyGuess != nil {
		if f := k.KeyGuess(value); f != "" {
			return f
		}
	}
	return k.NaturalKeys[0]
}

// Columns returns the stable output column order for the kind.
func (k *Kind) Columns() []string {
	cols := make([]string, 0, len(k.Fields)+5)
	cols = append(cols, "id")
	for _, f := range k.Fields {
		cols = append(cols, f.Name)
	}
	cols = append(cols, "tags", "notes")
	if k.HasStatus() {
		cols = append(cols, "status")
	}
	return append(cols, "added_at")
}

// Label is the capitalized singular name ("Paper").
func (k *Kind) Label() string {
	if k.Name == "" {
		return ""
	}
	return strings.ToUpper(k.Name[:1]) + k.Name[1:]
}
