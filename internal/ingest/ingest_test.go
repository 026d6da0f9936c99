package ingest

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// createLegacyDB builds a jobs table the way older tools stored saved
// postings: tags as a comma list next to the posting columns.
func createLegacyDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`CREATE TABLE jobs (
		id INTEGER PRIMARY KEY, title TEXT, company TEXT, url TEXT UNIQUE,
		salary_min REAL, tags TEXT, notes TEXT, status TEXT, added_at TEXT)`)
	require.NoError(t, err)
	for _, r := range [][]any{
		{"Dev", "Acme", "https://j/1", 100000.0, "go,remote", "good fit", "applied"},
		{"Ops", "Beta", "https://j/2", nil, "", nil, "bogus"},
		{"Nameless", "Gamma", nil, nil, "", nil, "new"},
	} {
		_, err = db.Exec(`INSERT INTO jobs (title, company, url, salary_min, tags, notes, status, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, '2024-01-01')`, r...)
		require.NoError(t, err)
	}
	return dbPath
}

func openCollection(t *testing.T, kind string) *store.Collection {
	t.Helper()
	lib, err := store.OpenLibrary(map[string]string{kind: filepath.Join(t.TempDir(), "shelf.db")},
		store.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })
	c, err := lib.Collection(kind)
	require.NoError(t, err)
	return c
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, JSON, DetectFormat("a/b.json"))
	assert.Equal(t, JSON, DetectFormat("-"))
	assert.Equal(t, JSONLines, DetectFormat("x.NDJSON"))
	assert.Equal(t, SQLite, DetectFormat("old/papers.db"))
	assert.Equal(t, "jsonl", JSONLines.String())

	for _, f := range []Format{JSON, JSONLines, SQLite} {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("csv")
	assert.ErrorContains(t, err, "unknown format")
}

func TestNewItem_SplitsAnnotation(t *testing.T) {
	it := newItem(map[string]any{
		"pmid": "1", "title": "t", "id": int64(4), "added_at": "2020",
		"tags": []any{"a", " b ", ""}, "notes": "n", "status": "saved",
	}, "f.json#0")

	assert.Equal(t, store.Record{"pmid": "1", "title": "t"}, it.Record)
	assert.Equal(t, []string{"a", "b"}, it.Tags)
	assert.Equal(t, "n", it.Notes)
	assert.Equal(t, "saved", it.Status)

	it = newItem(map[string]any{"tags": "x, y,,z"}, "")
	assert.Equal(t, []string{"x", "y", "z"}, it.Tags)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.json", "nested/b.json", "nested/deep/c.json", "nested/skip.txt"} {
		writeFile(t, filepath.Join(dir, p), "[]")
	}

	got, err := Expand([]string{
		filepath.Join(dir, "**", "*.json"),
		filepath.Join(dir, "a.json"),
		"-",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "nested", "b.json"),
		filepath.Join(dir, "nested", "deep", "c.json"),
		"-",
	}, got)

	_, err = Expand([]string{filepath.Join(dir, "*.csv")})
	assert.ErrorContains(t, err, "no files matched")
	_, err = Expand([]string{filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "search.json")
	writeFile(t, path, searchResponse)

	items, err := ReadFile(ctx, path, nil, Options{Selector: "$.results[*]"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, path+"#1", items[1].Source)

	items, err = ReadFile(ctx, "-", strings.NewReader(`{"url": "https://j/1"}`+"\n"+`{"url": "https://j/2"}`),
		Options{Format: ptr(JSONLines)})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = ReadFile(ctx, "-", nil, Options{})
	assert.Error(t, err)
	_, err = ReadFile(ctx, createLegacyDB(t), nil, Options{})
	assert.ErrorContains(t, err, "table name")
}

func ptr[T any](v T) *T { return &v }

func TestStreamTable(t *testing.T) {
	ctx := context.Background()
	dbPath := createLegacyDB(t)

	var rows []map[string]any
	require.NoError(t, StreamTable(ctx, dbPath, "jobs", func(row map[string]any) error {
		rows = append(rows, row)
		return nil
	}))
	require.Len(t, rows, 3)
	assert.Equal(t, "https://j/1", rows[0]["url"])
	assert.Equal(t, 100000.0, rows[0]["salary_min"])
	assert.NotContains(t, rows[1], "salary_min", "NULL columns are omitted")

	assert.ErrorContains(t, StreamTable(ctx, dbPath, "jobs; DROP TABLE jobs", nil), "invalid table")
	assert.Error(t, StreamTable(ctx, dbPath, "papers", nil))
	assert.Error(t, StreamTable(ctx, filepath.Join(t.TempDir(), "none.db"), "jobs", nil))
}

func TestImport_LegacyJobs(t *testing.T) {
	ctx := context.Background()
	c := openCollection(t, "job")

	items, err := ReadFile(ctx, createLegacyDB(t), nil, Options{Table: "jobs"})
	require.NoError(t, err)

	res, err := Import(ctx, c, items, store.Annotation{Tags: []string{"migrated"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 2, res.Failures[0].Index)
	assert.ErrorIs(t, res.Failures[0].Err, store.ErrMissingNaturalKey)
	assert.Contains(t, res.Failures[0].Err.Error(), "jobs.db#2: ")

	first, err := c.Get(ctx, store.ByKey("https://j/1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "migrated", "remote"}, first.Tags)
	assert.Equal(t, "good fit", first.Notes)
	assert.Equal(t, "applied", first.Status)

	second, err := c.Get(ctx, store.ByKey("https://j/2"))
	require.NoError(t, err)
	assert.Equal(t, "new", second.Status, "unknown legacy status falls back to the default")
	assert.Equal(t, []string{"migrated"}, second.Tags)

	again, err := Import(ctx, c, items, store.Annotation{})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Skipped)
}

func TestImport_BatchAnnotationWins(t *testing.T) {
	ctx := context.Background()
	c := openCollection(t, "paper")
	items, err := Parse([]byte(`[{"pmid": "1", "title": "t", "notes": "from file"}]`), JSON, DefaultSelector, "inline")
	require.NoError(t, err)

	_, err = Import(ctx, c, items, store.Annotation{Notes: "from flag"})
	require.NoError(t, err)

	got, err := c.Get(ctx, store.ByKey("1"))
	require.NoError(t, err)
	assert.Equal(t, "from flag", got.Notes)
	assert.Equal(t, api.Paper, got.Kind)
}
