package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownKind is returned when a kind name matches no descriptor.
var ErrUnknownKind = errors.New("unknown kind")

// Paper is a research article from PubMed or arXiv. A paper may carry
// either identifier; both are unique.
var Paper = &Kind{
	Name:   "paper",
	Plural: "papers",
	Table:  "papers",
	Fields: []Field{
		{Name: "pmid"},
		{Name: "arxiv_id"},
		{Name: "doi"},
		{Name: "title", Required: true, Indexed: true},
		{Name: "authors", Indexed: true},
		{Name: "year", Type: Integer, Indexed: true},
		{Name: "date", Type: Date},
		{Name: "journal"},
		{Name: "volume"},
		{Name: "issue"},
		{Name: "pages"},
		{Name: "abstract"},
		{Name: "url"},
		{Name: "doi_url"},
		{Name: "source", Indexed: true},
	},
	NaturalKeys: []string{"pmid", "arxiv_id"},
	KeyGuess: func(v string) string {
		// arXiv ids look like 2301.07041; PMIDs are plain digits.
		if strings.Contains(v, ".") {
			return "arxiv_id"
		}
		return "pmid"
	},
	TitleField:    "title",
	KeywordFields: []string{"title", "abstract", "authors"},
	TagMatch:      MatchAll,
	Order:         []OrderTerm{{Field: "year", Desc: true}, {Field: "added_at", Desc: true}},
	Groups: []Group{
		{Field: "source"},
		{Field: "year", Limit: 10, ByValue: true},
	},
	Summary: `{{.title}}
   Authors: {{trunc (show .authors) 100}}
   Year: {{show .year}} | Source: {{show .source}}{{with .tags}} [Tags: {{.}}]{{end}}
   URL: {{show .url}}`,
}

// Grant is a funded project from NIH RePORTER, keyed by project number.
var Grant = &Kind{
	Name:   "grant",
	Plural: "grants",
	Table:  "grants",
	Fields: []Field{
		{Name: "project_num"},
		{Name: "title", Required: true, Indexed: true},
		{Name: "pi_names", Indexed: true},
		{Name: "contact_pi_name"},
		{Name: "organization", Indexed: true},
		{Name: "org_city"},
		{Name: "org_state"},
		{Name: "org_country"},
		{Name: "fiscal_year", Type: Integer, Indexed: true},
		{Name: "award_amount", Type: Integer},
		{Name: "award_notice_date", Type: Date},
		{Name: "project_start_date", Type: Date},
		{Name: "project_end_date", Type: Date},
		{Name: "abstract"},
		{Name: "phr"},
		{Name: "agency", Indexed: true},
		{Name: "activity_code", Indexed: true},
		{Name: "opportunity_number"},
		{Name: "full_study_section"},
		{Name: "url"},
		{Name: "source", Default: "NIH RePORTER"},
	},
	NaturalKeys:   []string{"project_num"},
	TitleField:    "title",
	KeywordFields: []string{"title", "abstract", "pi_names", "organization"},
	TagMatch:      MatchAny,
	Order:         []OrderTerm{{Field: "award_amount", Desc: true}},
	Groups: []Group{
		{Field: "agency"},
		{Field: "fiscal_year", ByValue: true},
	},
	SumField: "award_amount",
	Summary: `{{.title}}
   Project: {{.project_num}} | PI: {{trunc (show .pi_names) 80}}
   Organization: {{show .organization}} | FY {{show .fiscal_year}} | Award: {{money .award_amount}}{{with .tags}} [Tags: {{.}}]{{end}}
   URL: {{show .url}}`,
}

// Job is a job posting, keyed by its source URL.
var Job = &Kind{
	Name:   "job",
	Plural: "jobs",
	Table:  "jobs",
	Fields: []Field{
		{Name: "title", Required: true, Indexed: true},
		{Name: "company", Indexed: true},
		{Name: "location", Indexed: true},
		{Name: "url"},
		{Name: "description"},
		{Name: "date_posted", Type: Date},
		{Name: "job_type", Indexed: true},
		{Name: "salary_min", Type: Real},
		{Name: "salary_max", Type: Real},
		{Name: "salary_currency"},
		{Name: "is_remote", Type: Bool, Indexed: true},
		{Name: "company_url"},
		{Name: "platform", Indexed: true, Default: "unknown"},
	},
	NaturalKeys:   []string{"url"},
	TitleField:    "title",
	KeywordFields: []string{"title", "description", "company"},
	TagMatch:      MatchAny,
	Order:         []OrderTerm{{Field: "added_at", Desc: true}},
	Derived: map[string]string{
		"salary": "MAX(COALESCE(salary_min, 0), COALESCE(salary_max, 0))",
	},
	Groups: []Group{
		{Field: "status"},
		{Field: "platform"},
		{Field: "company", Limit: 10},
	},
	Flags:         []string{"is_remote"},
	Statuses:      []string{"new", "saved", "applied", "interviewing", "offer", "rejected"},
	DefaultStatus: "new",
	Summary: `**{{.title}}** at {{show .company}}
   Location: {{show .location}}{{if and .salary_min .salary_max}}
   Salary: {{money .salary_min}} - {{money .salary_max}}{{end}}
   Status: {{.status}}{{with .tags}}
   Tags: {{.}}{{end}}{{with .url}}
   URL: {{.}}{{end}}`,
}

// Builtin returns the built-in kinds keyed by name.
func Builtin() map[string]*Kind {
	return map[string]*Kind{
		Paper.Name: Paper,
		Grant.Name: Grant,
		Job.Name:   Job,
	}
}

// Lookup resolves a kind by singular or plural name.
func Lookup(name string) (*Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range Builtin() {
		if k.Name == name || k.Plural == name {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownKind, name, strings.Join(Names(), ", "))
}

// Names returns the built-in kind names, sorted.
func Names() []string {
	names := make([]string, 0, 3)
	for n := range Builtin() {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
