package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/store"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List configured kinds and their databases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(lib *store.Library) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tKEYS\tTAGS\tDATABASE")
			for _, c := range lib.Collections() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Kind.Name, strings.Join(c.Kind.NaturalKeys, ","), c.Kind.TagMatch, c.Store.Path())
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
