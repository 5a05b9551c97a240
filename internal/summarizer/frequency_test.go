package summarizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/summarizer"
)

func TestSummarize_ShortTextReturnedWhole(t *testing.T) {
	s := summarizer.NewFrequencySummarizer()
	got, err := s.Summarize("  One sentence.  Two sentences!  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "One sentence. Two sentences!", got)
}

func TestSummarize_EmptyText(t *testing.T) {
	got, err := summarizer.NewFrequencySummarizer().Summarize("   ", 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummarize_PicksFrequentTopicInDocumentOrder(t *testing.T) {
	text := "Embeddings map chunks to vectors. " +
		"The weather was nice. " +
		"Vectors of chunks are compared with cosine similarity. " +
		"Lunch was late. " +
		"Chunks with similar vectors answer the question"
	got, err := summarizer.NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Vectors of chunks are compared with cosine similarity. Chunks with similar vectors answer the question", got)
}

func TestSummarize_DefaultSentenceCount(t *testing.T) {
	text := "Uno. Dos. Tres. Cuatro. Cinco."
	got, err := summarizer.NewFrequencySummarizer().Summarize(text, 0)
	require.NoError(t, err)
	assert.Len(t, splitSentences(got), summarizer.DefaultSentences)
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '.' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	return out
}
