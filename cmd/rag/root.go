package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root rag command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rag",
		Short:         "Question answering over your documents",
		Long:          "rag indexes documents into an embedding corpus and answers questions grounded on it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ./config.yaml or ~/.config/rag/config.yaml)")
	root.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the config")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newIngestCmd(),
		newAskCmd(),
		newChatCmd(),
		newServeCmd(),
		newQuestionsCmd(),
		newPurgeCmd(),
	)
	return root
}
