package domain

import "context"

// TextExtractor turns a source document into raw text.
// Pages without extractable text are skipped rather than failing the document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits cleaned text into bounded-size chunks.
type Chunker interface {
	Chunk(text string) []string
}

// EmbeddingProvider converts text into a fixed-length vector.
// A given provider configuration always returns vectors of the same length.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerationProvider answers a question using only the supplied context.
type GenerationProvider interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// CorpusStore persists embedding records. Appends are individually atomic.
type CorpusStore interface {
	AppendRecord(ctx context.Context, rec EmbeddingRecord) (int64, error)
	ListAll(ctx context.Context) ([]EmbeddingRecord, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// AnswerHistoryStore persists answered questions and the records they used.
type AnswerHistoryStore interface {
	InsertQuestion(ctx context.Context, question, answer string) (int64, error)
	InsertLinks(ctx context.Context, questionID int64, recordIDs []int64) error
	ListQuestions(ctx context.Context) ([]Question, error)
	ListLinks(ctx context.Context, questionID int64) ([]QuestionLink, error)
	DeleteQuestion(ctx context.Context, id int64) error
	DeleteAllQuestions(ctx context.Context) error
}

// Summarizer produces a brief extractive summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
