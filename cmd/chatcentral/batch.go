package main

import (
	"github.com/spf13/cobra"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

func newBatchCommand(deps **Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Drive a batch detail-fetch pass for a platform",
		Long: `Batch fetch requires a running extension host supplying the Fetcher
collaborator (dispatch-fetch/navigate against live tabs); the standalone
CLI has none wired in and reports NoContext until one is configured.`,
	}
	cmd.AddCommand(newBatchRunCommand(deps))
	cmd.AddCommand(newBatchCancelCommand(deps))
	return cmd
}

func newBatchRunCommand(deps **Deps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "run <platform>",
		Short: "Fetch full detail for every conversation missing it, then export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			platform, err := model.ParsePlatform(args[0])
			if err != nil {
				return err
			}

			var limitPtr *int
			if limit > 0 {
				limitPtr = &limit
			}

			progress, err := d.Batch.Run(cmd.Context(), platform, limitPtr)
			if err != nil {
				return err
			}

			var last interface{}
			for p := range progress {
				last = p
				printText("batch: %s %d/%d\n", p.Status, p.Completed, p.Total)
			}
			if flagOutput == "json" {
				return outputJSON(last)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum conversations to fetch (0 = all missing full detail)")
	return cmd
}

func newBatchCancelCommand(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active batch-fetch pass, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			d.Batch.Cancel()
			printText("cancelled\n")
			return nil
		},
	}
}
