package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg.Source != "" {
			fmt.Fprintf(out, "# %s\n", cfg.Source)
		} else {
			fmt.Fprintln(out, "# built-in defaults")
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
