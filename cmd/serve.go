package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/mcpserver"
	"github.com/agentic-research/shelf/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store as MCP tools over stdio",
	Long: `Serve exposes save, find, tag, get, delete and database-info tools for
every configured kind to an MCP client speaking over stdin/stdout. Logs go to
stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(lib *store.Library) error {
			return mcpserver.New(lib, rootCmd.Version, logger).ServeStdio()
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
