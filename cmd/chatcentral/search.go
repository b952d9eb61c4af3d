package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowKKo/chat-central-sub002/internal/search"
)

func newSearchCommand(deps **Deps) *cobra.Command {
	var withMatches bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversations by title, summary, preview, or message content",
		Long: `Search supports operators alongside free-text terms:
  platform:claude  is:favorite  tag:research  after:2026-01-01  before:2026-06-01

Examples:
  chatcentral search "react hooks" --matches
  chatcentral search "platform:gemini tag:work budget"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			query := strings.Join(args, " ")

			results, matches, err := d.Search.Search(cmd.Context(), query, withMatches)
			if err != nil {
				return err
			}

			if flagOutput == "json" {
				if !withMatches {
					return outputJSON(results)
				}
				return outputJSON(map[string]interface{}{"results": results, "matches": matches})
			}
			return printSearchResults(results, matches, withMatches)
		},
	}

	cmd.Flags().BoolVar(&withMatches, "matches", false, "include snippet matches in the output")
	return cmd
}

func printSearchResults(results []search.Result, matches map[string][]search.Match, withMatches bool) error {
	if len(results) == 0 {
		printText("No matches.\n")
		return nil
	}
	for _, r := range results {
		printText("%-36s %-10s %5.1f  %s\n", truncate(r.Conversation.ID, 36), r.Conversation.Platform.DisplayName(), r.Score, truncate(r.Conversation.Title, 50))
		if withMatches {
			for _, m := range matches[r.Conversation.ID] {
				printText("    [%s] %s\n", m.Type, m.Text)
			}
		}
	}
	return nil
}
