package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/report"
	"github.com/agentic-research/shelf/internal/store"
)

var statsTags int

var statsCmd = &cobra.Command{
	Use:   "stats [kind]",
	Short: "Summarize saved records",
	Long:  `Stats prints totals, per-category breakdowns and the tags in use. Without a kind every configured kind is summarized.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return withCollection(args[0], func(c *store.Collection) error {
				return printStats(cmd, c)
			})
		}
		return withLibrary(func(lib *store.Library) error {
			for i, c := range lib.Collections() {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", c.Kind.Label())
				if err := printStats(cmd, c); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func printStats(cmd *cobra.Command, c *store.Collection) error {
	st, err := c.Stats(cmd.Context())
	if err != nil {
		return err
	}
	return report.Stats(cmd.OutOrStdout(), c.Kind, st, statsTags)
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsTags, "max-tags", 20, "Tags to list (0 = all)")
}
