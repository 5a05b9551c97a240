package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ragqa/internal/service"
)

func newAskCmd() *cobra.Command {
	var (
		topK        int
		showContext bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question from the corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ans, err := a.pipeline.Answer(cmd.Context(), strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			printAnswer(cmd.OutOrStdout(), ans, showContext)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "records to retrieve (0 uses retrieval.top_k)")
	cmd.Flags().BoolVar(&showContext, "show-context", false, "print the context sent to the model")
	return cmd
}

func printAnswer(w io.Writer, ans *service.Answer, showContext bool) {
	fmt.Fprintln(w, ans.Answer)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "question #%d, sources:\n", ans.QuestionID)
	for i, src := range ans.Sources {
		fmt.Fprintf(w, "  %d. %s (score %.3f)\n", i+1, src.Record.Source, src.Score)
	}
	if showContext {
		fmt.Fprintln(w)
		fmt.Fprint(w, ans.Context)
	}
}
