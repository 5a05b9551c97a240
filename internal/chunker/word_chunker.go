package chunker

import (
	"strings"
	"unicode/utf8"

	"ragqa/internal/domain"
)

const (
	MinChunkSize = 300
	MaxChunkSize = 800
)

// WordChunker greedily packs whitespace-delimited words into chunks whose
// length, in characters, lies between a minimum and a maximum.
type WordChunker struct {
	minSize int
	maxSize int
}

func NewWordChunker(minSize, maxSize int) *WordChunker {
	if minSize <= 0 {
		minSize = MinChunkSize
	}
	if maxSize <= 0 {
		maxSize = MaxChunkSize
	}
	return &WordChunker{minSize: minSize, maxSize: maxSize}
}

func (c *WordChunker) MinSize() int { return c.minSize }
func (c *WordChunker) MaxSize() int { return c.maxSize }

// Chunk splits cleaned text using the configured bounds.
func (c *WordChunker) Chunk(text string) []string {
	return Chunk(text, c.minSize, c.maxSize)
}

// ChunkDocument chunks text and tags every chunk with its source and ordinal.
func (c *WordChunker) ChunkDocument(source, text string) []domain.Chunk {
	parts := c.Chunk(text)
	chunks := make([]domain.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = domain.Chunk{Source: source, Index: i, Text: p}
	}
	return chunks
}

// Chunk splits cleaned text into chunks of minSize..maxSize characters.
//
// A word is added to the running buffer while len(buf)+len(word)+1 stays
// within maxSize. When it would not, the buffer is emitted only if it has
// already reached minSize; otherwise the word is appended anyway, so the
// minimum wins over the maximum. A trailing buffer shorter than minSize is
// dropped, and words are never split.
//
// TODO(chunking): the forced overflow past maxSize is kept for compatibility
// with existing corpora; revisit once re-indexing is supported.
func Chunk(text string, minSize, maxSize int) []string {
	if text == "" {
		return nil
	}
	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)
	for _, word := range strings.Split(text, " ") {
		wordLen := utf8.RuneCountInString(word)
		switch {
		case bufLen+wordLen+1 <= maxSize:
			if buf.Len() > 0 {
				buf.WriteByte(' ')
				bufLen++
			}
		case bufLen >= minSize:
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		case buf.Len() > 0:
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(word)
		bufLen += wordLen
	}
	if bufLen >= minSize {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
