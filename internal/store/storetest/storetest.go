// Package storetest holds the behavioural contract every corpus and history
// store implementation must satisfy.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/ragerr"
)

// Store is the combined surface exercised by Run.
type Store interface {
	domain.CorpusStore
	domain.AnswerHistoryStore
}

// Run executes the contract against fresh stores produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("AppendAssignsIncreasingIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := appendRecord(t, s, "a.pdf", "alpha", 1, 0)
		second := appendRecord(t, s, "b.pdf", "beta", 0, 1)
		assert.Greater(t, second, first)

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, first, all[0].ID)
		assert.Equal(t, "alpha", all[0].Text)
		assert.Equal(t, "a.pdf", all[0].Source)
		assert.Equal(t, []float32{1, 0}, all[0].Embedding)
		assert.Equal(t, second, all[1].ID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("AppendRejectsEmptyEmbedding", func(t *testing.T) {
		s := newStore(t)
		_, err := s.AppendRecord(context.Background(), domain.EmbeddingRecord{Text: "x", Source: "x.txt"})
		require.Error(t, err)
		assert.True(t, ragerr.IsInvalidInput(err))
	})

	t.Run("AppendCopiesEmbedding", func(t *testing.T) {
		s := newStore(t)
		vec := []float32{0.5, 0.25, -1}
		_, err := s.AppendRecord(context.Background(), domain.EmbeddingRecord{Text: "x", Source: "x.txt", Embedding: vec})
		require.NoError(t, err)
		vec[0] = 9

		all, err := s.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, []float32{0.5, 0.25, -1}, all[0].Embedding)
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		s := newStore(t)
		const n = 20
		var wg sync.WaitGroup
		ids := make([]int64, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = s.AppendRecord(context.Background(), domain.EmbeddingRecord{
					Text: "chunk", Source: "c.txt", Embedding: []float32{float32(i), 1},
				})
			}(i)
		}
		wg.Wait()

		seen := make(map[int64]bool, n)
		for i := range ids {
			require.NoError(t, errs[i])
			assert.False(t, seen[ids[i]], "duplicate id %d", ids[i])
			seen[ids[i]] = true
		}
		count, err := s.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, n, count)
	})

	t.Run("QuestionsNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		q1, err := s.InsertQuestion(ctx, "first?", "one")
		require.NoError(t, err)
		q2, err := s.InsertQuestion(ctx, "second?", "two")
		require.NoError(t, err)

		qs, err := s.ListQuestions(ctx)
		require.NoError(t, err)
		require.Len(t, qs, 2)
		assert.Equal(t, q2, qs[0].ID)
		assert.Equal(t, "second?", qs[0].Text)
		assert.Equal(t, "two", qs[0].Answer)
		assert.False(t, qs[0].CreatedAt.IsZero())
		assert.Equal(t, q1, qs[1].ID)
	})

	t.Run("EmptyHistoryIsEmptyList", func(t *testing.T) {
		s := newStore(t)
		qs, err := s.ListQuestions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, qs)
	})

	t.Run("LinksKeepRank", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := appendRecord(t, s, "a.pdf", "alpha", 1, 0)
		b := appendRecord(t, s, "b.pdf", "beta", 0, 1)

		q, err := s.InsertQuestion(ctx, "which?", "beta")
		require.NoError(t, err)
		require.NoError(t, s.InsertLinks(ctx, q, []int64{b, a}))

		links, err := s.ListLinks(ctx, q)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, domain.QuestionLink{QuestionID: q, RecordID: b, Rank: 1}, links[0])
		assert.Equal(t, domain.QuestionLink{QuestionID: q, RecordID: a, Rank: 2}, links[1])
	})

	t.Run("LinksToUnknownQuestion", func(t *testing.T) {
		s := newStore(t)
		a := appendRecord(t, s, "a.pdf", "alpha", 1, 0)
		err := s.InsertLinks(context.Background(), 404, []int64{a})
		require.Error(t, err)
		assert.True(t, ragerr.IsNotFound(err))
	})

	t.Run("LinksToUnknownRecordWriteNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := appendRecord(t, s, "a.pdf", "alpha", 1, 0)
		q, err := s.InsertQuestion(ctx, "q?", "a")
		require.NoError(t, err)

		err = s.InsertLinks(ctx, q, []int64{a, a + 1000})
		require.Error(t, err)
		assert.True(t, ragerr.IsStore(err))
		assert.True(t, ragerr.IsInvalidInput(err))
		assert.True(t, ragerr.HasCode(err, ragerr.CodeStoreInvalidInput))
		assert.Equal(t, a+1000, ragerr.FieldsOf(err)["record_id"])

		links, err := s.ListLinks(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, links)
	})

	t.Run("DeleteQuestionRemovesLinks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := appendRecord(t, s, "a.pdf", "alpha", 1, 0)
		q, err := s.InsertQuestion(ctx, "q?", "a")
		require.NoError(t, err)
		keep, err := s.InsertQuestion(ctx, "other?", "b")
		require.NoError(t, err)
		require.NoError(t, s.InsertLinks(ctx, q, []int64{a}))
		require.NoError(t, s.InsertLinks(ctx, keep, []int64{a}))

		require.NoError(t, s.DeleteQuestion(ctx, q))

		links, err := s.ListLinks(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, links)
		links, err = s.ListLinks(ctx, keep)
		require.NoError(t, err)
		assert.Len(t, links, 1)

		qs, err := s.ListQuestions(ctx)
		require.NoError(t, err)
		require.Len(t, qs, 1)
		assert.Equal(t, keep, qs[0].ID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "deleting a question keeps the corpus")
	})

	t.Run("DeleteMissingQuestionIsNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.DeleteQuestion(context.Background(), 99)
		require.Error(t, err)
		assert.True(t, ragerr.IsNotFound(err))
		assert.Equal(t, int64(99), ragerr.FieldsOf(err)["question_id"])
	})

	t.Run("DeleteAllQuestions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := appendRecord(t, s, "a.pdf", "alpha", 1, 0)
		q, err := s.InsertQuestion(ctx, "q?", "a")
		require.NoError(t, err)
		require.NoError(t, s.InsertLinks(ctx, q, []int64{a}))

		require.NoError(t, s.DeleteAllQuestions(ctx))

		qs, err := s.ListQuestions(ctx)
		require.NoError(t, err)
		assert.Empty(t, qs)
		links, err := s.ListLinks(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, links)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("PurgeCorpusDropsLinksKeepsQuestions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := appendRecord(t, s, "a.pdf", "alpha", 1, 0)
		q, err := s.InsertQuestion(ctx, "q?", "a")
		require.NoError(t, err)
		require.NoError(t, s.InsertLinks(ctx, q, []int64{a}))

		require.NoError(t, s.DeleteAll(ctx))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		links, err := s.ListLinks(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, links)
		qs, err := s.ListQuestions(ctx)
		require.NoError(t, err)
		assert.Len(t, qs, 1)
	})
}

func appendRecord(t *testing.T, s Store, source, text string, v ...float32) int64 {
	t.Helper()
	id, err := s.AppendRecord(context.Background(), domain.EmbeddingRecord{Source: source, Text: text, Embedding: v})
	require.NoError(t, err)
	return id
}
