package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagOutput     string
)

func newRootCommand() *cobra.Command {
	var deps *Deps

	cmd := &cobra.Command{
		Use:   "chatcentral",
		Short: "Inspect and manage the local chat-central conversation store",
		Long: `chatcentral is the command-line front end for the local conversation
store: listing and searching ingested conversations, managing tags,
exporting/importing archives, and driving batch detail fetches.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			d, err := DefaultDeps(flagConfigPath, nil)
			if err != nil {
				return err
			}
			deps = d
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return deps.Store.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a config file (optional)")
	cmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json")

	cmd.AddCommand(newConversationCommand(&deps))
	cmd.AddCommand(newSearchCommand(&deps))
	cmd.AddCommand(newTagCommand(&deps))
	cmd.AddCommand(newExportCommand(&deps))
	cmd.AddCommand(newImportCommand(&deps))
	cmd.AddCommand(newBatchCommand(&deps))
	cmd.AddCommand(newConfigCommand(&deps))

	return cmd
}

func printText(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}
