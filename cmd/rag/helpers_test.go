package main

import "ragqa/internal/domain"

func domainRecord() domain.EmbeddingRecord {
	return domain.EmbeddingRecord{Source: "guide.md", Text: "RAG retrieves context.", Embedding: []float32{0.1, 0.9}}
}
