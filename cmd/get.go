package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/report"
	"github.com/agentic-research/shelf/internal/store"
)

var getJSON bool

var getCmd = &cobra.Command{
	Use:   "get <kind> <ref>",
	Short: "Show one saved record",
	Long: `A reference is a natural identifier (a PMID, arXiv id, project number or
URL), #<id> for the database id, or field=value for a natural key field.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCollection(args[0], func(c *store.Collection) error {
			e, err := c.Get(cmd.Context(), store.ParseRef(args[1]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getJSON {
				_, err := fmt.Fprintln(out, report.EntityJSON(e))
				return err
			}
			s, err := report.Summary(e)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n   ID: #%d | Added: %s\n", s, e.ID, e.AddedAt.Format("2006-01-02 15:04"))
			if e.Notes != "" {
				fmt.Fprintf(out, "   Notes: %s\n", e.Notes)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Output every stored field as JSON")
}
