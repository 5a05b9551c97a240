package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ragqa/internal/ragerr"
	"ragqa/internal/service"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file-or-dir>...",
		Short: "Extract, chunk and embed documents into the corpus",
		Long: "Ingest PDF, text, Markdown, DOCX and ODT documents. Directories are walked\n" +
			"recursively. A failing document is reported and the rest continue.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			var (
				reports []service.IngestReport
				errs    []error
			)
			for _, arg := range args {
				info, err := os.Stat(arg)
				if err != nil {
					errs = append(errs, ragerr.Wrap(err, ragerr.CodeExtractionReadFailure, "cannot read input", ragerr.FieldSource(arg)))
					continue
				}
				if info.IsDir() {
					rs, err := a.pipeline.IngestDir(ctx, arg)
					reports = append(reports, rs...)
					if err != nil {
						errs = append(errs, err)
					}
					continue
				}
				r, err := a.pipeline.Ingest(ctx, arg)
				reports = append(reports, r)
				if err != nil {
					errs = append(errs, err)
				}
			}

			printReports(cmd.OutOrStdout(), reports)
			if total, err := a.pipeline.CorpusSize(ctx); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "corpus now holds %d records\n", total)
			}
			return ragerr.Join(errs...)
		},
	}
}

func printReports(w io.Writer, reports []service.IngestReport) {
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(w, "FAIL %s: %v (%d records written)\n", r.Source, r.Err, r.Records)
			continue
		}
		fmt.Fprintf(w, "ok   %s: %d characters, %d chunks, %d records in %s\n",
			r.Source, r.Characters, r.Chunks, r.Records, r.Duration.Round(time.Millisecond))
		if r.Summary != "" {
			fmt.Fprintf(w, "     %s\n", r.Summary)
		}
	}
}
