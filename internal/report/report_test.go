package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paper(id int64, title string, fields store.Record, tags ...string) store.Entity {
	f := store.Record{"title": title}
	for k, v := range fields {
		f[k] = v
	}
	return store.Entity{ID: id, Kind: api.Paper, Fields: f, Tags: tags, AddedAt: time.Unix(0, 0)}
}

func TestSummary_Paper(t *testing.T) {
	e := paper(3, "CRISPR screens", store.Record{
		"authors": strings.Repeat("A", 120), "year": int64(2023), "source": "PubMed", "url": "https://pubmed/1",
	}, "crispr", "review")

	s, err := Summary(e)
	require.NoError(t, err)
	lines := strings.Split(s, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "CRISPR screens", lines[0])
	assert.Equal(t, "   Authors: "+strings.Repeat("A", 100)+"...", lines[1])
	assert.Equal(t, "   Year: 2023 | Source: PubMed [Tags: crispr,review]", lines[2])
	assert.Equal(t, "   URL: https://pubmed/1", lines[3])
}

func TestSummary_MissingValues(t *testing.T) {
	s, err := Summary(paper(1, "Bare", nil))
	require.NoError(t, err)
	assert.Contains(t, s, "Year: N/A | Source: N/A\n")
	assert.NotContains(t, s, "Tags")
}

func TestSummary_Job(t *testing.T) {
	e := store.Entity{ID: 1, Kind: api.Job, Status: "applied", Fields: store.Record{
		"title": "SRE", "company": "Acme", "salary_min": 120000.0, "salary_max": 150000.0, "url": "https://j/1",
	}}
	s, err := Summary(e)
	require.NoError(t, err)
	assert.Contains(t, s, "**SRE** at Acme")
	assert.Contains(t, s, "Location: N/A")
	assert.Contains(t, s, "Salary: $120,000 - $150,000")
	assert.Contains(t, s, "Status: applied")
	assert.Contains(t, s, "URL: https://j/1")

	delete(e.Fields, "salary_max")
	s, err = Summary(e)
	require.NoError(t, err)
	assert.NotContains(t, s, "Salary")
}

func TestSummary_Grant(t *testing.T) {
	e := store.Entity{ID: 1, Kind: api.Grant, Fields: store.Record{
		"project_num": "R01GM1", "title": "Drives", "award_amount": int64(1250000), "fiscal_year": int64(2024),
	}}
	s, err := Summary(e)
	require.NoError(t, err)
	assert.Contains(t, s, "Project: R01GM1 | PI: N/A")
	assert.Contains(t, s, "FY 2024 | Award: $1,250,000")
}

func TestList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, List(&buf, api.Paper, nil, 0))
	assert.Equal(t, "No saved papers found matching criteria.\n", buf.String())

	var es []store.Entity
	for i := 1; i <= 12; i++ {
		es = append(es, paper(int64(i), "Paper", nil))
	}
	buf.Reset()
	require.NoError(t, List(&buf, api.Paper, es, 10))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Found 12 saved papers:\n"))
	assert.Contains(t, out, "\n10. Paper\n")
	assert.NotContains(t, out, "\n11. ")
	assert.Contains(t, out, "   ID: #10\n")
	assert.True(t, strings.HasSuffix(out, "\n... and 2 more\n"))
}

func TestStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Stats(&buf, api.Grant, store.Stats{Path: "/x/grants.db"}, 20))
	assert.Equal(t, "Database not initialized at /x/grants.db\n", buf.String())

	tags := make([]string, 0, 22)
	counts := map[string]int{}
	for i := 0; i < 22; i++ {
		tg := string(rune('a' + i))
		tags = append(tags, tg)
		counts[tg] = 1
	}
	st := store.Stats{
		Path: "/x/jobs.db", Exists: true, Total: 3,
		ByCategory: map[string][]store.Bucket{
			"status":   {{Value: "new", Count: 2}, {Value: "applied", Count: 1}},
			"platform": {{Value: "linkedin", Count: 3}},
		},
		Flags:     map[string]int{"is_remote": 1},
		Tags:      tags,
		TagCounts: counts,
	}
	buf.Reset()
	require.NoError(t, Stats(&buf, api.Job, st, 20))
	out := buf.String()
	assert.Contains(t, out, "Database: /x/jobs.db\nTotal jobs: 3\nIs remote: 1\n")
	assert.Contains(t, out, "\nBy Status:\n  - new: 2\n  - applied: 1\n")
	assert.Contains(t, out, "\nBy Platform:\n  - linkedin: 3\n")
	assert.NotContains(t, out, "By Company")
	assert.Contains(t, out, "Tags (22): a (1), b (1)")
	assert.Contains(t, out, "  ... and 2 more\n")

	buf.Reset()
	require.NoError(t, Stats(&buf, api.Grant, store.Stats{Path: "g.db", Exists: true, Total: 2,
		Sum: &store.Sum{Field: "award_amount", Total: 350}}, 0))
	assert.Contains(t, buf.String(), "Total award amount: $350\n")
}

func TestSaved(t *testing.T) {
	got := Saved(api.Paper, store.ImportResult{Created: 5, Skipped: 2, Failed: 1})
	assert.Equal(t, "Saved 5 papers, skipped 2 duplicates, 1 errors", got)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "Fiscal year", Label("fiscal_year"))
	assert.Equal(t, "", Label(""))

	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "hé...", Truncate("héllo", 2))

	assert.Equal(t, "$0", Money(0))
	assert.Equal(t, "$999", Money(int64(999)))
	assert.Equal(t, "$1,000", Money(999.6))
	assert.Equal(t, "$12,345,678", Money(12345678))
	assert.Equal(t, "-$1,500", Money(-1500.0))
	assert.Equal(t, Missing, Money(nil))
}
