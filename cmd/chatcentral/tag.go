package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newTagCommand(deps **Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage conversation tags",
	}
	cmd.AddCommand(newTagListCommand(deps))
	cmd.AddCommand(newTagSetCommand(deps))
	return cmd
}

func newTagListCommand(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tag in use, sorted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			tags, err := d.Tags.AllTags(cmd.Context())
			if err != nil {
				return err
			}
			if flagOutput == "json" {
				return outputJSON(tags)
			}
			if len(tags) == 0 {
				printText("No tags.\n")
				return nil
			}
			for _, t := range tags {
				printText("%s\n", t)
			}
			return nil
		},
	}
}

func newTagSetCommand(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <conversation-id> <tags>",
		Short: "Replace a conversation's tags (comma-separated)",
		Long:  `Tags are canonicalized: trimmed, empties dropped, duplicates removed.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			tags := strings.Split(args[1], ",")

			c, err := d.Tags.UpdateTags(cmd.Context(), args[0], tags)
			if err != nil {
				return err
			}
			if flagOutput == "json" {
				return outputJSON(c)
			}
			printText("Tags for %s: %s\n", c.ID, joinTags(c.Tags))
			return nil
		},
	}
}
