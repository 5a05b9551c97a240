package domain

import "time"

// Document is a source file queued for ingestion. Name is the provenance
// label stored with every record cut from it.
type Document struct {
	Path string
	Name string
}

// Chunk is a contiguous span of cleaned document text used as a retrieval unit.
type Chunk struct {
	Source string
	Index  int
	Text   string
}

// EmbeddingRecord is one persisted corpus entry: a chunk and its vector.
type EmbeddingRecord struct {
	ID        int64
	Text      string
	Embedding []float32
	Source    string
}

// ScoredRecord is a corpus record ranked against a query vector.
type ScoredRecord struct {
	Record EmbeddingRecord
	Score  float64
}

// Question is an answered user query.
type Question struct {
	ID        int64
	Text      string
	Answer    string
	CreatedAt time.Time
}

// QuestionLink records that a corpus record was used as context for a question.
type QuestionLink struct {
	QuestionID int64
	RecordID   int64
	Rank       int
}
