package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ragqa/internal/ragerr"
)

func newPurgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove every record from the corpus",
		Long:  "Remove every record from the corpus. Questions are kept; their source links are removed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return ragerr.New(ragerr.CodePipelineInvalidInput, "refusing to purge without --yes")
			}
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := a.pipeline.CorpusSize(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.pipeline.PurgeCorpus(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d records\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the purge")
	return cmd
}
