package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/flowKKo/chat-central-sub002/internal/merge"
	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

func newConversationCommand(deps **Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversation",
		Short: "List and inspect conversations",
		Long: `List and inspect ingested conversations.

Examples:
  chatcentral conversation list --platform claude --favorite
  chatcentral conversation show claude_abc123`,
	}

	cmd.AddCommand(newConversationListCommand(deps))
	cmd.AddCommand(newConversationShowCommand(deps))
	return cmd
}

func newConversationListCommand(deps **Deps) *cobra.Command {
	var (
		platformFlag string
		favoriteOnly bool
		tagFlag      string
		limit        int
		offset       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			filter := store.Filter{FavoriteOnly: favoriteOnly}
			if platformFlag != "" {
				p, err := model.ParsePlatform(platformFlag)
				if err != nil {
					return err
				}
				filter.Platform = &p
			}
			if tagFlag != "" {
				filter.Tag = &tagFlag
			}

			result, err := d.Store.ListConversations(cmd.Context(), filter, store.OrderUpdatedAtDesc, store.Page{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}

			if flagOutput == "json" {
				return outputJSON(result)
			}
			return printConversationList(result)
		},
	}

	cmd.Flags().StringVar(&platformFlag, "platform", "", "filter by platform: claude, chatgpt, gemini")
	cmd.Flags().BoolVar(&favoriteOnly, "favorite", false, "only favorited conversations")
	cmd.Flags().StringVar(&tagFlag, "tag", "", "filter by tag")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return cmd
}

func printConversationList(result store.ListResult) error {
	if len(result.Conversations) == 0 {
		printText("No conversations found.\n")
		return nil
	}

	printText("%-36s %-10s %-8s %-40s %s\n", "ID", "PLATFORM", "DETAIL", "TITLE", "UPDATED")
	for _, c := range result.Conversations {
		printText("%-36s %-10s %-8s %-40s %s\n",
			truncate(c.ID, 36),
			c.Platform.DisplayName(),
			string(c.DetailStatus),
			truncate(c.Title, 40),
			formatMillis(c.UpdatedAt))
	}
	if result.HasMore {
		printText("\n(more results available; use --offset to page further)\n")
	}
	return nil
}

func newConversationShowCommand(deps **Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			id := args[0]

			if err := merge.MigrateGeminiLegacyID(cmd.Context(), d.Store, id); err != nil {
				return err
			}

			c, err := d.Store.GetConversation(cmd.Context(), id)
			if err != nil {
				return err
			}
			if c == nil {
				return model.NewError(model.KindNotFound, "conversation not found: "+id, nil)
			}

			msgs, err := d.Store.GetMessagesByConversation(cmd.Context(), id)
			if err != nil {
				return err
			}

			if flagOutput == "json" {
				return outputJSON(map[string]interface{}{"conversation": c, "messages": msgs})
			}
			return printConversationDetail(*c, msgs)
		},
	}
	return cmd
}

func printConversationDetail(c model.Conversation, msgs []model.Message) error {
	printText("Title:      %s\n", c.Title)
	printText("Platform:   %s\n", c.Platform.DisplayName())
	printText("Detail:     %s\n", c.DetailStatus)
	printText("Tags:       %s\n", joinTags(c.Tags))
	printText("Favorite:   %v\n", c.IsFavorite)
	printText("Created:    %s\n", formatMillis(c.CreatedAt))
	printText("Updated:    %s\n", formatMillis(c.UpdatedAt))
	printText("\nMessages (%d):\n", len(msgs))
	for _, m := range msgs {
		role := "assistant"
		if m.Role == model.RoleUser {
			role = "you"
		}
		printText("  [%s] %s\n", role, truncate(m.Content, 200))
	}
	return nil
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "(none)"
	}
	out := tags[0]
	for _, t := range tags[1:] {
		out += ", " + t
	}
	return out
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
