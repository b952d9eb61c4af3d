package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowKKo/chat-central-sub002/internal/export"
	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

func newExportCommand(deps **Deps) *cobra.Command {
	var (
		platformFlag string
		markdown     bool
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export conversations to a ZIP archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			filter := store.Filter{}
			scope := "full"
			if platformFlag != "" {
				p, err := model.ParsePlatform(platformFlag)
				if err != nil {
					return err
				}
				filter.Platform = &p
				scope = platformFlag
			}

			listed, err := d.Store.ListConversations(cmd.Context(), filter, store.OrderUpdatedAtDesc, store.Page{Offset: 0, Limit: 1 << 20})
			if err != nil {
				return err
			}

			msgsByConv := make(map[string][]model.Message, len(listed.Conversations))
			for _, c := range listed.Conversations {
				msgs, err := d.Store.GetMessagesByConversation(cmd.Context(), c.ID)
				if err != nil {
					return err
				}
				msgsByConv[c.ID] = msgs
			}

			var archive []byte
			var manifest export.Manifest
			if markdown {
				archive, manifest, err = d.Export.ExportMarkdown(listed.Conversations, msgsByConv)
			} else {
				archive, manifest, err = d.Export.Export(listed.Conversations, msgsByConv, scope)
			}
			if err != nil {
				return err
			}

			if outPath == "" {
				name := "all"
				if platformFlag != "" {
					name = platformFlag
				}
				outPath = export.Filename(name, time.Now())
			}
			if err := os.WriteFile(outPath, archive, 0o644); err != nil {
				return model.NewError(model.KindStore, "writing archive", err)
			}

			if flagOutput == "json" {
				return outputJSON(map[string]interface{}{"path": outPath, "manifest": manifest})
			}
			printText("Exported %d conversations, %d messages to %s\n", manifest.Stats.Conversations, manifest.Stats.Messages, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformFlag, "platform", "", "restrict export to one platform")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "export as Markdown instead of JSON")
	cmd.Flags().StringVar(&outPath, "out", "", "output file path (default: generated name in the current directory)")

	return cmd
}
