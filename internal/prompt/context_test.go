package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ragqa/internal/domain"
	"ragqa/internal/prompt"
)

func TestBuildContext_Empty(t *testing.T) {
	assert.Equal(t, "", prompt.BuildContext(nil))
	assert.Equal(t, "", prompt.BuildContext([]domain.EmbeddingRecord{}))
}

func TestBuildContext_TwoChunks(t *testing.T) {
	got := prompt.BuildContext([]domain.EmbeddingRecord{
		{ID: 9, Source: "nvidia.pdf", Text: "NVIDIA was founded in 1993."},
		{ID: 4, Source: "gpus.pdf", Text: "The RTX 4090 launched in 2022."},
	})

	want := "[Document 1 | Source: nvidia.pdf]\nNVIDIA was founded in 1993.\n\n" +
		"[Document 2 | Source: gpus.pdf]\nThe RTX 4090 launched in 2022.\n\n"
	assert.Equal(t, want, got)
	assert.Less(t, strings.Index(got, "[Document 1"), strings.Index(got, "[Document 2"))
}

func TestUserPrompt(t *testing.T) {
	got := prompt.UserPrompt("When was NVIDIA founded?", "[Document 1 | Source: a]\nx\n\n")
	assert.True(t, strings.HasPrefix(got, "Context:\n[Document 1"))
	assert.Contains(t, got, "Question:\nWhen was NVIDIA founded?")
}
