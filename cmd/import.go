package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/ingest"
	"github.com/agentic-research/shelf/internal/report"
	"github.com/agentic-research/shelf/internal/store"
	"github.com/agentic-research/shelf/internal/tags"
)

var (
	importSelect string
	importTable  string
	importFormat string
	importTags   string
	importNotes  string
	importStatus string
	importSet    []string
)

var importCmd = &cobra.Command{
	Use:   "import <kind> <file|glob|->...",
	Short: "Import records from JSON, JSON Lines or an older SQLite database",
	Long: `Import saves every record found in the given inputs. Records whose natural
identifier is already stored are skipped and never overwritten. A record that
fails validation is reported and the rest of the batch continues.

Inputs may be globs (including **). Use - to read standard input.`,
	Example: `  shelf import papers search-results.json --select '$.results[*]' --tags crispr
  shelf import jobs 'exports/**/*.jsonl' --set platform=linkedin
  shelf import grants old/grants.db --table grants`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := ingest.Options{Selector: importSelect, Table: importTable}
		if importFormat != "" {
			f, err := ingest.ParseFormat(importFormat)
			if err != nil {
				return err
			}
			opts.Format = &f
		}
		files, err := ingest.Expand(args[1:])
		if err != nil {
			return err
		}

		a := store.Annotation{
			Tags:   tags.SplitList(importTags),
			Notes:  importNotes,
			Status: importStatus,
		}
		set, err := parseAssignments("set", importSet)
		if err != nil {
			return err
		}
		if len(set) > 0 {
			a.Defaults = store.Record{}
			for k, v := range set {
				a.Defaults[k] = v
			}
		}

		return withCollection(args[0], func(c *store.Collection) error {
			ctx := cmd.Context()
			var total store.ImportResult
			for _, path := range files {
				items, err := ingest.ReadFile(ctx, path, cmd.InOrStdin(), opts)
				if err != nil {
					return err
				}
				res, err := ingest.Import(ctx, c, items, a)
				if err != nil {
					return err
				}
				logger.Info("imported", "kind", c.Kind.Name, "file", path,
					"created", res.Created, "skipped", res.Skipped, "failed", res.Failed)
				total.Add(res, total.Total())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Saved(c.Kind, total))
			for _, f := range total.Failures {
				fmt.Fprintf(out, "  %v\n", f.Err)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importSelect, "select", ingest.DefaultSelector, "JSONPath selecting the records in JSON input")
	importCmd.Flags().StringVar(&importTable, "table", "", "Table to read from SQLite input")
	importCmd.Flags().StringVar(&importFormat, "format", "", "Input format: json, jsonl or sqlite (default by extension)")
	importCmd.Flags().StringVar(&importTags, "tags", "", "Comma-separated tags for every imported record")
	importCmd.Flags().StringVar(&importNotes, "notes", "", "Notes for every imported record")
	importCmd.Flags().StringVar(&importStatus, "status", "", "Initial status for kinds that track one")
	importCmd.Flags().StringArrayVar(&importSet, "set", nil, "Field value used when a record has none (field=value)")
}
