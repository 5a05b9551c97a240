// Package memory provides volatile CorpusStore and AnswerHistoryStore
// implementations guarded by a read/write mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/ragerr"
)

var (
	_ domain.CorpusStore        = (*Store)(nil)
	_ domain.AnswerHistoryStore = (*Store)(nil)
)

// Store keeps the corpus and the answer history in memory. Identifiers are
// assigned from monotonically increasing counters, so insertion order and ID
// order agree.
type Store struct {
	mu        sync.RWMutex
	records   []domain.EmbeddingRecord
	questions map[int64]domain.Question
	links     map[int64][]domain.QuestionLink
	nextRec   int64
	nextQ     int64
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		questions: make(map[int64]domain.Question),
		links:     make(map[int64][]domain.QuestionLink),
		now:       time.Now,
	}
}

func (s *Store) AppendRecord(_ context.Context, rec domain.EmbeddingRecord) (int64, error) {
	if len(rec.Embedding) == 0 {
		return 0, ragerr.New(ragerr.CodeStoreInvalidInput, "record has no embedding", ragerr.FieldSource(rec.Source))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRec++
	rec.ID = s.nextRec
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *Store) ListAll(_ context.Context) ([]domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EmbeddingRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// DeleteAll purges the corpus along with every link that referenced it.
func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.links = make(map[int64][]domain.QuestionLink)
	return nil
}

func (s *Store) InsertQuestion(_ context.Context, question, answer string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQ++
	s.questions[s.nextQ] = domain.Question{ID: s.nextQ, Text: question, Answer: answer, CreatedAt: s.now()}
	return s.nextQ, nil
}

// InsertLinks records the ranked record IDs used for a question. It fails
// without writing anything if the question or any record is unknown.
func (s *Store) InsertLinks(_ context.Context, questionID int64, recordIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return ragerr.New(ragerr.CodeStoreNotFound, "question not found", ragerr.FieldQuestionID(questionID))
	}
	known := make(map[int64]struct{}, len(s.records))
	for _, r := range s.records {
		known[r.ID] = struct{}{}
	}
	links := make([]domain.QuestionLink, 0, len(recordIDs))
	for i, id := range recordIDs {
		if _, ok := known[id]; !ok {
			return ragerr.New(ragerr.CodeStoreInvalidInput, "link references unknown record",
				ragerr.FieldQuestionID(questionID), ragerr.Field("record_id", id))
		}
		links = append(links, domain.QuestionLink{QuestionID: questionID, RecordID: id, Rank: i + 1})
	}
	s.links[questionID] = append(s.links[questionID], links...)
	return nil
}

func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListLinks(_ context.Context, questionID int64) ([]domain.QuestionLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.QuestionLink(nil), s.links[questionID]...), nil
}

func (s *Store) DeleteQuestion(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return ragerr.New(ragerr.CodeStoreNotFound, "question not found", ragerr.FieldQuestionID(id))
	}
	delete(s.links, id)
	delete(s.questions, id)
	return nil
}

func (s *Store) DeleteAllQuestions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = make(map[int64][]domain.QuestionLink)
	s.questions = make(map[int64]domain.Question)
	return nil
}

func (s *Store) Close() error { return nil }
