package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentic-research/shelf/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_SharedAndSeparateFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lib, err := OpenLibrary(map[string]string{
		"paper": filepath.Join(dir, "research.db"),
		"grant": filepath.Join(dir, "research.db"),
		"jobs":  filepath.Join(dir, "jobs.db"),
	}, WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })

	papers, err := lib.Collection("papers")
	require.NoError(t, err)
	grants, err := lib.Collection("grant")
	require.NoError(t, err)
	jobs, err := lib.Collection("job")
	require.NoError(t, err)

	assert.Same(t, papers.Store, grants.Store)
	assert.NotSame(t, papers.Store, jobs.Store)
	assert.Equal(t, filepath.Join(dir, "jobs.db"), jobs.Store.Path())

	cols := lib.Collections()
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"grant", "job", "paper"}, []string{cols[0].Kind.Name, cols[1].Kind.Name, cols[2].Kind.Name})

	res, err := papers.Upsert(ctx, Record{"pmid": "1", "title": "t"}, Annotation{})
	require.NoError(t, err)
	assert.Equal(t, Created, res.Outcome)
	got, err := papers.Search(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	st, err := grants.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestLibrary_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenLibrary(map[string]string{"widget": filepath.Join(dir, "w.db")})
	assert.ErrorIs(t, err, api.ErrUnknownKind)

	lib, err := OpenLibrary(map[string]string{"paper": filepath.Join(dir, "p.db")}, WithLogger(testLogger()))
	require.NoError(t, err)
	defer func() { _ = lib.Close() }()

	_, err = lib.Collection("grants")
	assert.ErrorIs(t, err, api.ErrUnknownKind)
	_, err = lib.Collection("widgets")
	assert.ErrorIs(t, err, api.ErrUnknownKind)
}
