package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragqa/internal/tui"
)

func newChatCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat over the corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := a.pipeline.CorpusSize(cmd.Context())
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = a.pipeline.TopK()
			}
			header := fmt.Sprintf("%d records in corpus, top %d per question", n, topK)
			m := tui.New(cmd.Context(), a.pipeline, topK, header)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "records to retrieve (0 uses retrieval.top_k)")
	return cmd
}
