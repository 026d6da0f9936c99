package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/report"
	"github.com/agentic-research/shelf/internal/store"
	"github.com/agentic-research/shelf/internal/tags"
)

var (
	searchKeywords string
	searchTags     string
	searchWhere    []string
	searchContains []string
	searchRanges   []string
	searchLimit    int
	searchOffset   int
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <kind>",
	Short: "Search saved records",
	Long: `Search combines every given filter with AND. Keywords match any of the
kind's text fields case-insensitively. Tags match exactly; papers need all
of them, grants and jobs any of them.`,
	Example: `  shelf search papers -k crispr --tags review --range year=2020..2024
  shelf search jobs --where status=applied --contains location=berlin
  shelf search grants --where agency= --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		where, err := parseAssignments("where", searchWhere)
		if err != nil {
			return err
		}
		contains, err := parseAssignments("contains", searchContains)
		if err != nil {
			return err
		}
		f := store.Filter{
			Keywords: searchKeywords,
			Tags:     tags.SplitList(searchTags),
			Contains: contains,
			Limit:    searchLimit,
			Offset:   searchOffset,
		}
		if len(where) > 0 {
			f.Equals = make(map[string]any, len(where))
			for k, v := range where {
				if v == "" {
					f.Equals[k] = nil
				} else {
					f.Equals[k] = v
				}
			}
		}
		for _, r := range searchRanges {
			rg, err := parseRange(r)
			if err != nil {
				return err
			}
			f.Ranges = append(f.Ranges, rg)
		}

		return withCollection(args[0], func(c *store.Collection) error {
			es, err := c.Search(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if searchJSON {
				return report.JSON(out, es)
			}
			return report.List(out, c.Kind, es, 0)
		})
	},
}

// parseAssignments parses repeated field=value flags.
func parseAssignments(flag string, vals []string) (map[string]string, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(vals))
	for _, v := range vals {
		k, val, ok := strings.Cut(v, "=")
		if k = strings.TrimSpace(k); !ok || k == "" {
			return nil, fmt.Errorf("bad --%s %q: want field=value", flag, v)
		}
		out[k] = strings.TrimSpace(val)
	}
	return out, nil
}

// parseRange parses field=min..max; either bound may be empty.
func parseRange(s string) (store.Range, error) {
	field, bounds, ok := strings.Cut(s, "=")
	lo, hi, dots := strings.Cut(bounds, "..")
	if !ok || !dots || strings.TrimSpace(field) == "" {
		return store.Range{}, fmt.Errorf("bad range %q: want field=min..max", s)
	}
	r := store.Range{Field: strings.TrimSpace(field)}
	if lo = strings.TrimSpace(lo); lo != "" {
		r.Min = lo
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		r.Max = hi
	}
	return r, nil
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchKeywords, "keywords", "k", "", "Text matched against the kind's keyword fields")
	searchCmd.Flags().StringVarP(&searchTags, "tags", "t", "", "Comma-separated tags")
	searchCmd.Flags().StringArrayVar(&searchWhere, "where", nil, "Exact field match (field=value; empty value matches unset)")
	searchCmd.Flags().StringArrayVar(&searchContains, "contains", nil, "Substring field match (field=text)")
	searchCmd.Flags().StringArrayVar(&searchRanges, "range", nil, "Bound a numeric or date field (field=min..max)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results (0 = all)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Skip this many results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output JSON")
}
