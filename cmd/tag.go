package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/store"
	"github.com/agentic-research/shelf/internal/tags"
)

var (
	tagSpec       string
	tagNotes      string
	tagClearNotes bool
	tagStatus     string
)

var tagCmd = &cobra.Command{
	Use:   "tag <kind> <ref>",
	Short: "Edit the tags, notes or status of a saved record",
	Long: `Tags use a compact edit syntax: +tag adds, -tag removes, and plain tags
replace the whole set. Replacing and adding/removing in one edit is an error.`,
	Example: `  shelf tag papers 38000001 --tags +to-read,-inbox
  shelf tag jobs https://example.com/jobs/42 --status applied --notes "referred by Sam"
  shelf tag grants '#12' --tags ""`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := store.Edit{Status: tagStatus}
		if cmd.Flags().Changed("tags") {
			e.Tags = tags.ParseEditSpec(tagSpec)
			if e.Tags.IsZero() {
				// --tags "" clears the set.
				e.Tags.Replace = []string{}
			}
		}
		switch {
		case tagClearNotes && cmd.Flags().Changed("notes"):
			return errors.New("--notes and --clear-notes are exclusive")
		case tagClearNotes:
			empty := ""
			e.Notes = &empty
		case cmd.Flags().Changed("notes"):
			e.Notes = &tagNotes
		}
		if e.IsZero() {
			return errors.New("nothing to update: give --tags, --notes, --clear-notes or --status")
		}

		return withCollection(args[0], func(c *store.Collection) error {
			ref := store.ParseRef(args[1])
			updated, err := c.Annotate(cmd.Context(), ref, e)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Updated %s %s with tags: %s", c.Kind.Name, ref, strings.Join(updated.Tags, ", "))
			if c.Kind.HasStatus() {
				msg += " (status: " + updated.Status + ")"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().StringVarP(&tagSpec, "tags", "t", "", "Tag edit: +add, -remove, or a replacement list")
	tagCmd.Flags().StringVar(&tagNotes, "notes", "", "Replace the notes")
	tagCmd.Flags().BoolVar(&tagClearNotes, "clear-notes", false, "Remove the notes")
	tagCmd.Flags().StringVar(&tagStatus, "status", "", "Set the status")
}
