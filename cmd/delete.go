package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <kind> <ref>",
	Short: "Remove a saved record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCollection(args[0], func(c *store.Collection) error {
			ref := store.ParseRef(args[1])
			if err := c.Delete(cmd.Context(), ref); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", c.Kind.Name, ref)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
