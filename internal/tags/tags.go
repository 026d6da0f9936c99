// Package tags implements the tag algebra: parsing, canonical
// serialization and edits over an entity's tag set. It does no I/O.
package tags

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Separator joins tags in the persisted form.
const Separator = ","

var (
	// ErrConflictingEdit is returned by Edit.Validate when Replace is given
	// together with Add or Remove.
	ErrConflictingEdit = errors.New("tag edit mixes replace with add/remove")
	// ErrInvalidTag is returned for empty tags or tags containing the separator.
	ErrInvalidTag = errors.New("invalid tag")
)

// Set is an unordered set of case-sensitive tags.
type Set map[string]struct{}

// NewSet builds a set from the given tags, dropping empty ones.
func NewSet(tags ...string) Set {
	s := make(Set, len(tags))
	for _, t := range tags {
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Has reports membership.
func (s Set) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in lexicographic order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Equal reports set equality.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for t := range s {
		if !o.Has(t) {
			return false
		}
	}
	return true
}

// Parse splits a persisted tag string on commas and drops empty tokens.
func Parse(serialized string) Set {
	if serialized == "" {
		return Set{}
	}
	return NewSet(strings.Split(serialized, Separator)...)
}

// Serialize returns the canonical form: sorted, de-duplicated, comma-joined.
// Parse(Serialize(s)) equals s for any set whose tags contain no comma.
func Serialize(s Set) string {
	return strings.Join(s.Sorted(), Separator)
}

// Canonical normalizes a tag list to its persisted form.
func Canonical(tags []string) string {
	return Serialize(NewSet(tags...))
}

// Validate rejects tags that cannot survive a round trip.
func Validate(tags ...string) error {
	for _, t := range tags {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty tag", ErrInvalidTag)
		}
		if strings.Contains(t, Separator) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidTag, t, Separator)
		}
	}
	return nil
}

// Edit describes a change to a tag set.
//
// A non-nil Replace (including an empty, non-nil slice, which clears all
// tags) replaces the set outright. Otherwise Add is applied, then Remove,
// so a tag listed in both ends up absent. Supplying Replace together with
// Add or Remove is a caller error: Apply lets Replace win, and Validate
// reports ErrConflictingEdit so callers can refuse the edit.
type Edit struct {
	Replace []string
	Add     []string
	Remove  []string
}

// IsZero reports whether the edit changes nothing.
func (e Edit) IsZero() bool {
	return e.Replace == nil && len(e.Add) == 0 && len(e.Remove) == 0
}

// Validate checks the edit for contract violations and malformed tags.
func (e Edit) Validate() error {
	if e.Replace != nil && (len(e.Add) > 0 || len(e.Remove) > 0) {
		return ErrConflictingEdit
	}
	if err := Validate(e.Replace...); err != nil {
		return err
	}
	return Validate(e.Add...)
}

// Apply returns the set produced by applying e to current. current is not
// modified.
func Apply(current Set, e Edit) Set {
	if e.Replace != nil {
		return NewSet(e.Replace...)
	}
	out := make(Set, len(current)+len(e.Add))
	for t := range current {
		out[t] = struct{}{}
	}
	for _, t := range e.Add {
		if t != "" {
			out[t] = struct{}{}
		}
	}
	for _, t := range e.Remove {
		delete(out, t)
	}
	return out
}

// SplitList splits user-entered comma-separated input, trimming whitespace
// around each tag and dropping empties.
func SplitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, Separator) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseEditSpec parses the compact edit syntax used by the CLI and tools:
// "+tag" adds, "-tag" removes, a bare "tag" is part of a replacement set.
// Mixing bare tags with +/- yields an Edit that fails Validate.
func ParseEditSpec(spec string) Edit {
	var e Edit
	for _, t := range SplitList(spec) {
		switch {
		case strings.HasPrefix(t, "+"):
			if t = strings.TrimSpace(t[1:]); t != "" {
				e.Add = append(e.Add, t)
			}
		case strings.HasPrefix(t, "-"):
			if t = strings.TrimSpace(t[1:]); t != "" {
				e.Remove = append(e.Remove, t)
			}
		default:
			e.Replace = append(e.Replace, t)
		}
	}
	return e
}
