package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/agentic-research/shelf/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_MissingTable(t *testing.T) {
	s := createTestStore(t)
	st, err := s.Stats(context.Background(), api.Grant)
	require.NoError(t, err)

	assert.False(t, st.Exists)
	assert.Equal(t, 0, st.Total)
	assert.Empty(t, st.Tags)
	require.NotNil(t, st.Sum)
	assert.Equal(t, "award_amount", st.Sum.Field)
	assert.Zero(t, st.Sum.Total)
	assert.Equal(t, s.Path(), st.Path)
}

func TestStats_Jobs(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for i, j := range []struct {
		rec Record
		a   Annotation
	}{
		{Record{"title": "A", "company": "Acme", "is_remote": true, "platform": "linkedin"}, Annotation{Tags: []string{"remote", "go"}}},
		{Record{"title": "B", "company": "Acme", "platform": "linkedin"}, Annotation{Tags: []string{"go"}, Status: "applied"}},
		{Record{"title": "C", "company": "Beta", "is_remote": "yes"}, Annotation{Status: "applied"}},
		{Record{"title": "D"}, Annotation{}},
	} {
		j.rec["url"] = fmt.Sprintf("https://j/%d", i)
		mustUpsert(t, s, api.Job, j.rec, j.a)
	}

	st, err := s.Stats(ctx, api.Job)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, 4, st.Total)
	assert.Nil(t, st.Sum)

	assert.Equal(t, []Bucket{{"applied", 2}, {"new", 2}}, st.ByCategory["status"])
	assert.Equal(t, map[string]int{"linkedin": 2, "unknown": 2}, st.Counts("platform"))
	assert.Equal(t, []Bucket{{"Acme", 2}, {NoValue, 1}, {"Beta", 1}}, st.ByCategory["company"])
	assert.Equal(t, 2, st.Flags["is_remote"])

	assert.Equal(t, []string{"go", "remote"}, st.Tags)
	assert.Equal(t, map[string]int{"go": 2, "remote": 1}, st.TagCounts)
}

func TestStats_GrantsSumAndYears(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for i, g := range []Record{
		{"title": "a", "agency": "NIGMS", "fiscal_year": 2023, "award_amount": 100},
		{"title": "b", "agency": "NIGMS", "fiscal_year": 2024, "award_amount": 250},
		{"title": "c", "agency": "NCI", "fiscal_year": 2024},
	} {
		g["project_num"] = fmt.Sprintf("R01-%d", i)
		mustUpsert(t, s, api.Grant, g, Annotation{})
	}

	st, err := s.Stats(ctx, api.Grant)
	require.NoError(t, err)
	require.NotNil(t, st.Sum)
	assert.Equal(t, 350.0, st.Sum.Total)
	assert.Equal(t, []Bucket{{"2024", 2}, {"2023", 1}}, st.ByCategory["fiscal_year"])
	assert.Equal(t, []Bucket{{"NIGMS", 2}, {"NCI", 1}}, st.ByCategory["agency"])
}

func TestStats_PaperYearsCapped(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for y := 2010; y < 2022; y++ {
		mustUpsert(t, s, api.Paper, Record{"pmid": fmt.Sprint(y), "title": "t", "year": y}, Annotation{})
	}

	st, err := s.Stats(ctx, api.Paper)
	require.NoError(t, err)
	years := st.ByCategory["year"]
	require.Len(t, years, 10)
	assert.Equal(t, "2021", years[0].Value)
	assert.Equal(t, "2012", years[9].Value)
	assert.Equal(t, []Bucket{{NoValue, 12}}, st.ByCategory["source"])
}

func TestTagIndex(t *testing.T) {
	ix := NewTagIndex()
	ix.Add(1, "a,b")
	ix.Add(2, "b")
	ix.Add(3, "")
	ix.Add(2, "b")

	assert.Equal(t, []string{"a", "b"}, ix.Vocabulary())
	assert.Equal(t, 1, ix.Count("a"))
	assert.Equal(t, 2, ix.Count("b"))
	assert.Equal(t, 0, ix.Count("zzz"))
}
