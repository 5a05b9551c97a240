// Package prompt assembles retrieved chunks and the user's question into the
// text sent to the generation provider.
package prompt

import (
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

// SystemInstruction restricts the model to the supplied context. It is a
// prompt-level contract; answers are not checked against the context.
const SystemInstruction = "Answer using only the information in the context. " +
	"If the context does not contain the answer, say that you do not know."

// BuildContext renders ranked records as labelled blocks, best first:
//
//	[Document 1 | Source: report.pdf]
//	chunk text
//	<blank line>
//
// An empty ranking yields an empty context.
func BuildContext(ranked []domain.EmbeddingRecord) string {
	var b strings.Builder
	for i, rec := range ranked {
		fmt.Fprintf(&b, "[Document %d | Source: %s]\n", i+1, rec.Source)
		b.WriteString(rec.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// UserPrompt combines the assembled context and the question.
func UserPrompt(question, context string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s\n", context, question)
}
