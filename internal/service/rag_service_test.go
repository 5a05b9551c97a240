package service_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/ragerr"
	"ragqa/internal/service"
	"ragqa/internal/store/memory"
	"ragqa/internal/summarizer"
)

type fakeExtractor struct {
	docs map[string]string
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	text, ok := f.docs[filepath.Base(path)]
	if !ok {
		return "", ragerr.New(ragerr.CodeExtractionReadFailure, "no such document", ragerr.FieldSource(path))
	}
	return text, nil
}

// fakeEmbedder maps text onto a 3-dimensional vector; vectors can be pinned
// per text.
type fakeEmbedder struct {
	mu     sync.Mutex
	fixed  map[string][]float32
	failOn string
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, ragerr.New(ragerr.CodeProviderUpstreamFailure, "embedding service unavailable")
	}
	if v, ok := f.fixed[text]; ok {
		return v, nil
	}
	return []float32{1, float32(len(text) % 7), float32(strings.Count(text, "a"))}, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	contexts []string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, question, contextText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.contexts = append(f.contexts, contextText)
	return "answer to " + question, nil
}

type failingLinks struct {
	*memory.Store
}

func (failingLinks) InsertLinks(context.Context, int64, []int64) error {
	return ragerr.New(ragerr.CodeStoreDatabaseFailure, "disk I/O error")
}

type harness struct {
	pipeline  *service.Pipeline
	store     *memory.Store
	embedder  *fakeEmbedder
	generator *fakeGenerator
}

func newHarness(t *testing.T, docs map[string]string, mutate ...func(*service.Deps)) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewStore(),
		embedder:  &fakeEmbedder{fixed: map[string][]float32{}},
		generator: &fakeGenerator{},
	}
	deps := service.Deps{
		Extractor:  &fakeExtractor{docs: docs},
		Chunker:    chunker.NewWordChunker(chunker.MinChunkSize, chunker.MaxChunkSize),
		Embedder:   h.embedder,
		Generator:  h.generator,
		Corpus:     h.store,
		History:    h.store,
		Summarizer: summarizer.NewFrequencySummarizer(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.pipeline = service.NewPipeline(deps, service.Options{SummarySentences: 2}, logger)
	return h
}

// twoChunkText is 1000 characters that split into two chunks with the
// default bounds.
func twoChunkText() string {
	word := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = strings.Repeat(string(rune('a'+i%26)), 9)
		}
		return out
	}
	return strings.Join(word(50), " ") + " " + strings.Repeat("x", 400) + " " + strings.Join(word(10), " ")
}

func TestIngest_ShortDocumentYieldsNoRecords(t *testing.T) {
	text := strings.Repeat("palabra ", 32)[:250]
	h := newHarness(t, map[string]string{"short.txt": text})

	report, err := h.pipeline.Ingest(context.Background(), "docs/short.txt")
	require.NoError(t, err)
	assert.Equal(t, "short.txt", report.Source)
	assert.Zero(t, report.Chunks)
	assert.Zero(t, report.Records)
	assert.Zero(t, h.embedder.calls)

	n, err := h.pipeline.CorpusSize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngest_ThousandCharactersTwoRecords(t *testing.T) {
	text := twoChunkText()
	require.Len(t, text, 1000)
	h := newHarness(t, map[string]string{"doc.pdf": text})

	report, err := h.pipeline.Ingest(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1000, report.Characters)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 2, report.Records)
	assert.NotEmpty(t, report.Summary)

	all, err := h.store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, rec := range all {
		assert.Equal(t, "doc.pdf", rec.Source)
		assert.GreaterOrEqual(t, len(rec.Text), chunker.MinChunkSize)
		assert.Len(t, rec.Embedding, 3)
	}
}

func TestIngest_CleansBeforeChunking(t *testing.T) {
	text := strings.ReplaceAll(twoChunkText(), " ", "\n\n  ")
	h := newHarness(t, map[string]string{"doc.txt": text})

	report, err := h.pipeline.Ingest(context.Background(), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, 1000, report.Characters)
	assert.Equal(t, 2, report.Records)
}

func TestIngest_EmbeddingFailureKeepsEarlierRecords(t *testing.T) {
	text := twoChunkText()
	h := newHarness(t, map[string]string{"doc.txt": text})
	h.embedder.failOn = strings.Repeat("x", 400)

	report, err := h.pipeline.Ingest(context.Background(), "doc.txt")
	require.Error(t, err)
	assert.True(t, ragerr.IsProvider(err))
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, err, report.Err)

	fields := ragerr.FieldsOf(err)
	assert.Equal(t, "doc.txt", fields["source"])
	assert.Equal(t, 1, fields["chunk"])

	n, err := h.pipeline.CorpusSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestDir_SkipsFailingDocuments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.pdf", "c.md", "notes.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	// b.pdf is unknown to the extractor and fails.
	h := newHarness(t, map[string]string{"a.txt": twoChunkText(), "c.md": twoChunkText()})

	reports, err := h.pipeline.IngestDir(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, ragerr.IsExtraction(err))
	require.Len(t, reports, 3)
	assert.Equal(t, []string{"a.txt", "b.pdf", "c.md"}, []string{reports[0].Source, reports[1].Source, reports[2].Source})
	assert.NoError(t, reports[0].Err)
	assert.Error(t, reports[1].Err)
	assert.NoError(t, reports[2].Err)

	n, err := h.pipeline.CorpusSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func seedCorpus(t *testing.T, h *harness) []int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	for _, rec := range []domain.EmbeddingRecord{
		{Text: "Madrid is the capital of Spain.", Source: "spain.pdf", Embedding: []float32{1, 0, 0}},
		{Text: "Paris is the capital of France.", Source: "france.pdf", Embedding: []float32{0.6, 0.8, 0}},
		{Text: "Bread is made from flour.", Source: "bread.txt", Embedding: []float32{0, 0, 1}},
	} {
		id, err := h.store.AppendRecord(ctx, rec)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestAnswer_SmallCorpusRanksEverything(t *testing.T) {
	h := newHarness(t, nil)
	ids := seedCorpus(t, h)
	h.embedder.fixed["What is the capital of Spain?"] = []float32{1, 0.1, 0}

	ans, err := h.pipeline.Answer(context.Background(), "  What is the capital of Spain?  ", 5)
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of Spain?", ans.Question)
	assert.Equal(t, "answer to What is the capital of Spain?", ans.Answer)

	require.Len(t, ans.Sources, 3)
	assert.Equal(t, []string{"spain.pdf", "france.pdf", "bread.txt"},
		[]string{ans.Sources[0].Record.Source, ans.Sources[1].Record.Source, ans.Sources[2].Record.Source})
	assert.Greater(t, ans.Sources[0].Score, ans.Sources[1].Score)
	assert.Greater(t, ans.Sources[1].Score, ans.Sources[2].Score)

	assert.Equal(t, 3, strings.Count(ans.Context, "[Document "))
	assert.True(t, strings.HasPrefix(ans.Context, "[Document 1 | Source: spain.pdf]\nMadrid"))
	assert.Contains(t, ans.Context, "[Document 3 | Source: bread.txt]\n")
	require.Len(t, h.generator.contexts, 1)
	assert.Equal(t, ans.Context, h.generator.contexts[0])

	links, err := h.pipeline.Sources(context.Background(), ans.QuestionID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, []int64{ids[0], ids[1], ids[2]}, []int64{links[0].RecordID, links[1].RecordID, links[2].RecordID})
	assert.Equal(t, 1, links[0].Rank)

	qs, err := h.pipeline.ListQuestions(context.Background())
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, ans.QuestionID, qs[0].ID)
}

func TestAnswer_UsesDefaultTopK(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 8; i++ {
		_, err := h.store.AppendRecord(context.Background(), domain.EmbeddingRecord{
			Text: "chunk", Source: "s.txt", Embedding: []float32{1, float32(i), 0},
		})
		require.NoError(t, err)
	}
	ans, err := h.pipeline.Answer(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Len(t, ans.Sources, h.pipeline.TopK())
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.pipeline.Answer(context.Background(), " \t ", 3)
	require.Error(t, err)
	assert.True(t, ragerr.IsInvalidInput(err))
	assert.Zero(t, h.embedder.calls)
}

func TestAnswer_GenerationFailureSavesNothing(t *testing.T) {
	h := newHarness(t, nil)
	seedCorpus(t, h)
	h.generator.err = ragerr.New(ragerr.CodeProviderTimeout, "chat timed out")

	_, err := h.pipeline.Answer(context.Background(), "q", 3)
	require.Error(t, err)
	assert.True(t, ragerr.IsTimeout(err))

	qs, err := h.pipeline.ListQuestions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestAnswer_DimensionMismatchSurfaces(t *testing.T) {
	h := newHarness(t, nil)
	seedCorpus(t, h)
	_, err := h.store.AppendRecord(context.Background(), domain.EmbeddingRecord{Text: "odd", Source: "odd.txt", Embedding: []float32{1, 2}})
	require.NoError(t, err)

	_, err = h.pipeline.Answer(context.Background(), "q", 3)
	require.Error(t, err)
	assert.True(t, ragerr.IsDimensionMismatch(err))
	assert.Empty(t, h.generator.contexts)
}

func TestAnswer_LinkFailureRemovesQuestion(t *testing.T) {
	h := newHarness(t, nil, func(d *service.Deps) {
		d.History = failingLinks{d.Corpus.(*memory.Store)}
	})
	seedCorpus(t, h)

	_, err := h.pipeline.Answer(context.Background(), "q", 3)
	require.Error(t, err)
	assert.True(t, ragerr.IsStore(err))

	qs, err := h.store.ListQuestions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestAnswer_Concurrent(t *testing.T) {
	h := newHarness(t, nil)
	seedCorpus(t, h)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.pipeline.Answer(context.Background(), "capital?", 2)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	qs, err := h.pipeline.ListQuestions(context.Background())
	require.NoError(t, err)
	assert.Len(t, qs, 10)
	for _, q := range qs {
		links, err := h.pipeline.Sources(context.Background(), q.ID)
		require.NoError(t, err)
		assert.Len(t, links, 2)
	}
}

func TestHistoryAdministration(t *testing.T) {
	h := newHarness(t, nil)
	seedCorpus(t, h)
	ctx := context.Background()

	first, err := h.pipeline.Answer(ctx, "one?", 2)
	require.NoError(t, err)
	second, err := h.pipeline.Answer(ctx, "two?", 2)
	require.NoError(t, err)

	require.NoError(t, h.pipeline.DeleteQuestion(ctx, first.QuestionID))
	err = h.pipeline.DeleteQuestion(ctx, first.QuestionID)
	assert.True(t, ragerr.IsNotFound(err))

	require.NoError(t, h.pipeline.PurgeCorpus(ctx))
	links, err := h.pipeline.Sources(ctx, second.QuestionID)
	require.NoError(t, err)
	assert.Empty(t, links)

	require.NoError(t, h.pipeline.DeleteAllQuestions(ctx))
	qs, err := h.pipeline.ListQuestions(ctx)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestIngest_ExtractionErrorCarriesSource(t *testing.T) {
	h := newHarness(t, map[string]string{})
	_, err := h.pipeline.Ingest(context.Background(), "missing.pdf")
	require.Error(t, err)
	assert.True(t, ragerr.IsExtraction(err))
	assert.Equal(t, "missing.pdf", ragerr.FieldsOf(err)["source"])
}
