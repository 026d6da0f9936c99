package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/agentic-research/shelf/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantBatch(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			"project_num":  fmt.Sprintf("R01-%03d", i),
			"title":        fmt.Sprintf("Grant %d", i),
			"award_amount": 1000 * (i + 1),
		}
	}
	return out
}

func TestImportAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	batch := grantBatch(4)

	first, err := s.ImportAll(ctx, api.Grant, batch, Annotation{Tags: []string{"nih"}})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 4}, first)

	second, err := s.ImportAll(ctx, api.Grant, batch, Annotation{Tags: []string{"nih"}})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 4}, second)
	assert.Equal(t, 4, second.Total())

	got, err := s.Search(ctx, api.Grant, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestImportAll_PartialFailure(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	valid := grantBatch(5)
	batch := []Record{valid[0], valid[1], valid[2], {"title": "No project number"}, valid[3], valid[4]}

	res, err := s.ImportAll(ctx, api.Grant, batch, Annotation{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Created)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 3, res.Failures[0].Index)
	assert.ErrorIs(t, res.Failures[0].Err, ErrMissingNaturalKey)

	got, err := s.Search(ctx, api.Grant, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestImportAll_DuplicatesWithinBatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	rec := Record{"url": "https://jobs/1", "title": "Dev"}
	res, err := s.ImportAll(ctx, api.Job, []Record{rec, rec, {"url": "https://jobs/2", "title": "Ops"}}, Annotation{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
}

func TestImportAll_InvalidAnnotationFailsEveryRecord(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	res, err := s.ImportAll(ctx, api.Job, []Record{
		{"url": "https://jobs/1", "title": "Dev"},
		{"url": "https://jobs/2", "title": "Ops"},
	}, Annotation{Status: "hired"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 0, res.Created)
	for _, f := range res.Failures {
		assert.ErrorIs(t, f.Err, ErrInvalidStatus)
	}
}

func TestImportEach_PerEntryAnnotation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	entries := []Entry{
		{Record: Record{"url": "https://jobs/1", "title": "Dev"}, Annotation: Annotation{Tags: []string{"go"}, Status: "applied"}},
		{Record: Record{"url": "https://jobs/2", "title": "Ops"}, Annotation: Annotation{Notes: "recruiter call"}},
		{Record: Record{"title": "No url"}, Source: "feed.jsonl#2"},
	}
	res, err := s.ImportEach(ctx, api.Job, len(entries), func(i int) Entry { return entries[i] })
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 2, res.Failures[0].Index)
	assert.ErrorIs(t, res.Failures[0].Err, ErrMissingNaturalKey)
	assert.True(t, strings.HasPrefix(res.Failures[0].Err.Error(), "feed.jsonl#2: "))

	one, err := s.Get(ctx, api.Job, ByKey("https://jobs/1"))
	require.NoError(t, err)
	assert.Equal(t, "applied", one.Status)
	assert.Equal(t, []string{"go"}, one.Tags)

	two, err := s.Get(ctx, api.Job, ByKey("https://jobs/2"))
	require.NoError(t, err)
	assert.Equal(t, "new", two.Status)
	assert.Equal(t, "recruiter call", two.Notes)
}

func TestImportAll_StopsOnCancel(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background(), api.Grant))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.ImportAll(ctx, api.Grant, grantBatch(3), Annotation{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Total())
}

func TestImportResult_Add(t *testing.T) {
	var total ImportResult
	total.Add(ImportResult{Created: 2, Failed: 1, Failures: []Failure{{Index: 1}}}, 0)
	total.Add(ImportResult{Skipped: 3, Failed: 1, Failures: []Failure{{Index: 0}}}, 10)

	assert.Equal(t, 2, total.Created)
	assert.Equal(t, 3, total.Skipped)
	assert.Equal(t, 2, total.Failed)
	assert.Equal(t, []int{1, 10}, []int{total.Failures[0].Index, total.Failures[1].Index})
	assert.Equal(t, 7, total.Total())
}
