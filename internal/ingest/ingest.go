// Package ingest turns files into records for the store: JSON documents
// selected with JSONPath, JSON Lines, and tables of legacy SQLite
// databases.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentic-research/shelf/internal/store"
	"github.com/agentic-research/shelf/internal/tags"
)

// Format is the encoding of an input.
type Format int

const (
	JSON Format = iota
	JSONLines
	SQLite
)

func (f Format) String() string {
	switch f {
	case JSONLines:
		return "jsonl"
	case SQLite:
		return "sqlite"
	default:
		return "json"
	}
}

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return JSONLines
	case ".db", ".sqlite", ".sqlite3":
		return SQLite
	default:
		return JSON
	}
}

// ParseFormat parses a format name as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONLines, nil
	case "sqlite", "db":
		return SQLite, nil
	}
	return JSON, fmt.Errorf("unknown format %q (want json, jsonl or sqlite)", s)
}

// Item is one record to import plus the annotation it carried in its
// source, if any.
type Item struct {
	Record store.Record
	Tags   []string
	Notes  string
	Status string
	// Source names where the item came from ("file.json#3").
	Source string
}

// reserved are keys that describe the saved item rather than the entity.
var reserved = []string{"id", "tags", "notes", "status", "added_at"}

// newItem splits annotation keys off a raw object.
func newItem(obj map[string]any, source string) Item {
	it := Item{Record: make(store.Record, len(obj)), Source: source}
	for k, v := range obj {
		it.Record[k] = v
	}
	switch v := obj["tags"].(type) {
	case string:
		it.Tags = tags.SplitList(v)
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				it.Tags = append(it.Tags, strings.TrimSpace(s))
			}
		}
	}
	if s, ok := obj["notes"].(string); ok {
		it.Notes = s
	}
	if s, ok := obj["status"].(string); ok {
		it.Status = s
	}
	for _, k := range reserved {
		delete(it.Record, k)
	}
	return it
}

// Options control how inputs are read.
type Options struct {
	// Selector is a JSONPath applied to JSON inputs.
	Selector string
	// Table is read from SQLite inputs.
	Table string
	// Format overrides extension-based detection when set.
	Format *Format
}

// Expand resolves glob patterns (including **) to a sorted, de-duplicated
// file list. A pattern without metacharacters must name an existing file.
// "-" passes through for standard input.
func Expand(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range patterns {
		if p == "-" {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
			continue
		}
		var matches []string
		if strings.ContainsAny(p, "*?[{") {
			m, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %s: %w", p, err)
			}
			if len(m) == 0 {
				return nil, fmt.Errorf("glob %s: no files matched", p)
			}
			sort.Strings(m)
			matches = m
		} else {
			if _, err := os.Stat(p); err != nil {
				return nil, err
			}
			matches = []string{p}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// Parse decodes a JSON or JSON Lines input.
func Parse(data []byte, f Format, selector, source string) ([]Item, error) {
	var (
		objs []map[string]any
		err  error
	)
	switch f {
	case JSONLines:
		objs, err = ParseLines(data, selector)
	case JSON:
		objs, err = ParseJSON(data, selector)
	default:
		return nil, fmt.Errorf("%s: cannot parse %s from bytes", source, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	items := make([]Item, len(objs))
	for i, o := range objs {
		items[i] = newItem(o, fmt.Sprintf("%s#%d", source, i))
	}
	return items, nil
}

// ReadFile reads one input. stdin is read when path is "-".
func ReadFile(ctx context.Context, path string, stdin io.Reader, opts Options) ([]Item, error) {
	f := DetectFormat(path)
	if opts.Format != nil {
		f = *opts.Format
	}

	if f == SQLite {
		if opts.Table == "" {
			return nil, errors.New("sqlite input needs a table name")
		}
		var items []Item
		err := StreamTable(ctx, path, opts.Table, func(row map[string]any) error {
			items = append(items, newItem(row, fmt.Sprintf("%s#%d", path, len(items))))
			return nil
		})
		return items, err
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		if stdin == nil {
			return nil, errors.New("no standard input")
		}
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, f, opts.Selector, path)
}

// Import saves items into c. Each item's own tags are added to the batch
// tags; its own notes and a valid status apply only where the batch leaves
// them empty. Failures are prefixed with the item's source.
func Import(ctx context.Context, c *store.Collection, items []Item, a store.Annotation) (store.ImportResult, error) {
	return c.ImportEach(ctx, len(items), func(i int) store.Entry {
		it := items[i]
		return store.Entry{Record: it.Record, Annotation: merge(c, a, it), Source: it.Source}
	})
}

func merge(c *store.Collection, a store.Annotation, it Item) store.Annotation {
	out := a
	if len(it.Tags) > 0 {
		out.Tags = tags.NewSet(append(append([]string{}, a.Tags...), it.Tags...)...).Sorted()
	}
	if out.Notes == "" {
		out.Notes = it.Notes
	}
	if out.Status == "" && c.Kind.ValidStatus(it.Status) {
		out.Status = it.Status
	}
	return out
}
