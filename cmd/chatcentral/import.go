package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flowKKo/chat-central-sub002/internal/importer"
	"github.com/flowKKo/chat-central-sub002/internal/model"
)

func newImportCommand(deps **Deps) *cobra.Command {
	var strategyFlag string

	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Import a previously exported archive",
		Long:  `Strategy controls how conflicts with existing conversations are resolved: merge (default), replace, or skip.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps

			archive, err := os.ReadFile(args[0])
			if err != nil {
				return model.NewError(model.KindInvalidFormat, "reading archive", err)
			}

			strategy := importer.Strategy(strategyFlag)
			switch strategy {
			case importer.StrategyMerge, importer.StrategyReplace, importer.StrategySkip:
			default:
				return model.NewError(model.KindValidation, "unknown strategy: "+strategyFlag, nil)
			}

			result, err := d.Import.Import(cmd.Context(), archive, strategy)
			if err != nil {
				return err
			}

			if flagOutput == "json" {
				return outputJSON(result)
			}
			printText("Imported %d conversations / %d messages\n", result.Imported.Conversations, result.Imported.Messages)
			printText("Skipped  %d conversations / %d messages\n", result.Skipped.Conversations, result.Skipped.Messages)
			if len(result.Conflicts) > 0 {
				printText("%d conversations already existed\n", len(result.Conflicts))
			}
			for _, e := range result.Errors {
				printText("error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyFlag, "strategy", "merge", "conflict strategy: merge, replace, skip")
	return cmd
}
