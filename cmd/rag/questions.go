package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ragqa/internal/ragerr"
)

func newQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Inspect and manage the answered question history",
	}
	cmd.AddCommand(newQuestionsListCmd(), newQuestionsDeleteCmd(), newQuestionsClearCmd())
	return cmd
}

func newQuestionsListCmd() *cobra.Command {
	var withSources bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			qs, err := a.pipeline.ListQuestions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(qs) == 0 {
				fmt.Fprintln(out, "no questions yet")
				return nil
			}
			for _, q := range qs {
				fmt.Fprintf(out, "#%d  %s\n    %s\n", q.ID, q.Text, q.Answer)
				if !withSources {
					continue
				}
				links, err := a.pipeline.Sources(cmd.Context(), q.ID)
				if err != nil {
					return err
				}
				for _, l := range links {
					fmt.Fprintf(out, "    [%d] record %d\n", l.Rank, l.RecordID)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSources, "sources", false, "show the records each answer used")
	return cmd
}

func newQuestionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one question and its source links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return ragerr.New(ragerr.CodePipelineInvalidInput, fmt.Sprintf("invalid question id %q", args[0]))
			}
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.pipeline.DeleteQuestion(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "question %d deleted\n", id)
			return nil
		},
	}
}

func newQuestionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.pipeline.DeleteAllQuestions(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all questions deleted")
			return nil
		},
	}
}
