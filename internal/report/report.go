// Package report renders stored entities and stats as plain text for the
// CLI and the tool server.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/store"
)

// Missing is shown for unset values.
const Missing = "N/A"

var tmplFuncs = template.FuncMap{
	"show": func(v any) string {
		if v == nil {
			return Missing
		}
		if s, ok := v.(string); ok && s == "" {
			return Missing
		}
		return fmt.Sprint(v)
	},
	"trunc": Truncate,
	"money": Money,
}

// templates caches parsed summaries by kind name.
var templates sync.Map

func summaryTemplate(k *api.Kind) (*template.Template, error) {
	if t, ok := templates.Load(k.Name); ok {
		return t.(*template.Template), nil
	}
	src := k.Summary
	if src == "" {
		src = "{{.title}}"
	}
	t, err := template.New(k.Name).Funcs(tmplFuncs).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s summary template: %w", k.Name, err)
	}
	templates.Store(k.Name, t)
	return t, nil
}

// Summary renders one entity with its kind's summary template.
func Summary(e store.Entity) (string, error) {
	t, err := summaryTemplate(e.Kind)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, e.Values()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// List writes a numbered listing. When max > 0 only the first max entities
// are shown, followed by a count of the rest.
func List(w io.Writer, k *api.Kind, es []store.Entity, max int) error {
	if len(es) == 0 {
		_, err := fmt.Fprintf(w, "No saved %s found matching criteria.\n", k.Plural)
		return err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Found %d saved %s:\n", len(es), k.Plural)
	shown := es
	if max > 0 && len(es) > max {
		shown = es[:max]
	}
	for i, e := range shown {
		s, err := Summary(e)
		if err != nil {
			return err
		}
		fmt.Fprintf(&buf, "\n%d. %s\n   ID: #%d\n", i+1, s, e.ID)
	}
	if rest := len(es) - len(shown); rest > 0 {
		fmt.Fprintf(&buf, "\n... and %d more\n", rest)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Stats writes a database summary. At most maxTags tags are listed
// (0 = all).
func Stats(w io.Writer, k *api.Kind, st store.Stats, maxTags int) error {
	var buf bytes.Buffer
	if !st.Exists {
		fmt.Fprintf(&buf, "Database not initialized at %s\n", st.Path)
		_, err := w.Write(buf.Bytes())
		return err
	}

	fmt.Fprintf(&buf, "Database: %s\n", st.Path)
	fmt.Fprintf(&buf, "Total %s: %d\n", k.Plural, st.Total)
	if st.Sum != nil {
		fmt.Fprintf(&buf, "Total %s: %s\n", Label(st.Sum.Field), Money(st.Sum.Total))
	}
	for _, flag := range k.Flags {
		fmt.Fprintf(&buf, "%s: %d\n", Label(flag), st.Flags[flag])
	}
	for _, g := range k.Groups {
		buckets := st.ByCategory[g.Field]
		if len(buckets) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\nBy %s:\n", Label(g.Field))
		for _, b := range buckets {
			fmt.Fprintf(&buf, "  - %s: %d\n", b.Value, b.Count)
		}
	}
	if len(st.Tags) > 0 {
		shown := st.Tags
		if maxTags > 0 && len(shown) > maxTags {
			shown = shown[:maxTags]
		}
		parts := make([]string, len(shown))
		for i, t := range shown {
			parts[i] = fmt.Sprintf("%s (%d)", t, st.TagCounts[t])
		}
		fmt.Fprintf(&buf, "\nTags (%d): %s\n", len(st.Tags), strings.Join(parts, ", "))
		if rest := len(st.Tags) - len(shown); rest > 0 {
			fmt.Fprintf(&buf, "  ... and %d more\n", rest)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Saved summarizes a batch import.
func Saved(k *api.Kind, res store.ImportResult) string {
	return fmt.Sprintf("Saved %d %s, skipped %d duplicates, %d errors", res.Created, k.Plural, res.Skipped, res.Failed)
}

// Label turns a column name into a heading ("fiscal_year" → "Fiscal year").
func Label(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[n:]
}

// Truncate shortens s to n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Money formats a number as whole dollars with thousands separators.
func Money(v any) string {
	var f float64
	switch x := v.(type) {
	case nil:
		return Missing
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case float64:
		f = x
	default:
		return fmt.Sprint(v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing
	}
	neg := f < 0
	digits := strconv.FormatInt(int64(math.Abs(math.Round(f))), 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
