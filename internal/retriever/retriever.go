// Package retriever ranks corpus records against a query vector by exact
// cosine similarity.
//
// Every call scans the whole corpus, which is O(n·d) per query. This is the
// component to replace with an index once the corpus outgrows memory; any
// replacement must keep the ranking and tie order below.
package retriever

import (
	"math"
	"sort"

	"ragqa/internal/domain"
	"ragqa/internal/ragerr"
)

const DefaultTopK = 5

// CosineSimilarity returns dot(a,b) / (|a|·|b|). Vectors of different
// length, empty vectors and zero-magnitude vectors are errors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ragerr.Errorf(ragerr.CodeRetrievalDimensionMismatch,
			"cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, ragerr.New(ragerr.CodeRetrievalZeroNorm, "cosine similarity on empty vectors")
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, ragerr.New(ragerr.CodeRetrievalZeroNorm, "cosine similarity with zero-magnitude vector")
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// CheckDimensions verifies every record shares the first record's dimension.
func CheckDimensions(corpus []domain.EmbeddingRecord) error {
	if len(corpus) == 0 {
		return nil
	}
	dim := len(corpus[0].Embedding)
	for _, rec := range corpus[1:] {
		if len(rec.Embedding) != dim {
			return ragerr.New(ragerr.CodeRetrievalDimensionMismatch,
				"corpus holds vectors of inconsistent dimension",
				ragerr.Field("record_id", rec.ID),
				ragerr.Field("want", dim),
				ragerr.Field("got", len(rec.Embedding)),
			)
		}
	}
	return nil
}

// RetrieveTopK returns up to k records most similar to query, best first.
// Equal scores keep corpus order. k <= 0 selects DefaultTopK; k larger than
// the corpus returns the whole corpus ranked. An empty corpus is not an error.
func RetrieveTopK(query []float32, corpus []domain.EmbeddingRecord, k int) ([]domain.ScoredRecord, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(corpus) == 0 {
		return []domain.ScoredRecord{}, nil
	}
	if err := CheckDimensions(corpus); err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredRecord, len(corpus))
	for i, rec := range corpus {
		score, err := CosineSimilarity(query, rec.Embedding)
		if err != nil {
			return nil, ragerr.With(err, ragerr.Field("record_id", rec.ID))
		}
		scored[i] = domain.ScoredRecord{Record: rec, Score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Records strips scores from a ranked result, keeping its order.
func Records(ranked []domain.ScoredRecord) []domain.EmbeddingRecord {
	out := make([]domain.EmbeddingRecord, len(ranked))
	for i, r := range ranked {
		out[i] = r.Record
	}
	return out
}
