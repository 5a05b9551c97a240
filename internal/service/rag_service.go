// Package service wires extraction, chunking, embedding, retrieval and
// generation into the question answering pipeline.
package service

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/extract"
	"ragqa/internal/prompt"
	"ragqa/internal/ragerr"
	"ragqa/internal/retriever"
)

// Deps are the collaborators a Pipeline needs. Summarizer is optional.
type Deps struct {
	Extractor  domain.TextExtractor
	Chunker    domain.Chunker
	Embedder   domain.EmbeddingProvider
	Generator  domain.GenerationProvider
	Corpus     domain.CorpusStore
	History    domain.AnswerHistoryStore
	Summarizer domain.Summarizer
}

// Options tune pipeline behaviour.
type Options struct {
	TopK             int
	SummarySentences int
}

// Answer is the outcome of a successful question.
type Answer struct {
	QuestionID int64
	Question   string
	Answer     string
	Context    string
	Sources    []domain.ScoredRecord
}

// IngestReport describes what ingesting one document produced. Err is set
// when the document failed part-way; Records then counts what was written
// before the failure.
type IngestReport struct {
	Source     string
	Path       string
	Characters int
	Chunks     int
	Records    int
	Summary    string
	Duration   time.Duration
	Err        error
}

// Pipeline is safe for concurrent use when its stores and providers are.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func NewPipeline(deps Deps, opts Options, logger *slog.Logger) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = retriever.DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{deps: deps, opts: opts, logger: logger}
}

// TopK returns the default number of records retrieved per question.
func (p *Pipeline) TopK() int { return p.opts.TopK }

// Ingest extracts, chunks and embeds one document, appending a record per
// chunk. Records written before a failure stay in the corpus.
func (p *Pipeline) Ingest(ctx context.Context, path string) (IngestReport, error) {
	start := time.Now()
	source := filepath.Base(path)
	report := IngestReport{Source: source, Path: path}

	raw, err := p.deps.Extractor.Extract(ctx, path)
	if err != nil {
		return p.failed(report, start, ragerr.With(err, ragerr.FieldSource(source)))
	}
	text := chunker.Clean(raw)
	report.Characters = utf8.RuneCountInString(text)

	chunks := p.deps.Chunker.Chunk(text)
	report.Chunks = len(chunks)
	p.logger.Debug("document chunked", "source", source, "characters", report.Characters, "chunks", len(chunks))

	for i, chunk := range chunks {
		vec, err := p.deps.Embedder.Embed(ctx, chunk)
		if err != nil {
			return p.failed(report, start, ragerr.With(err, ragerr.FieldSource(source), ragerr.FieldChunk(i)))
		}
		if _, err := p.deps.Corpus.AppendRecord(ctx, domain.EmbeddingRecord{Text: chunk, Embedding: vec, Source: source}); err != nil {
			return p.failed(report, start, ragerr.With(err, ragerr.FieldSource(source), ragerr.FieldChunk(i)))
		}
		report.Records++
	}

	if p.deps.Summarizer != nil && text != "" {
		summary, err := p.deps.Summarizer.Summarize(text, p.opts.SummarySentences)
		if err != nil {
			p.logger.Warn("summary failed", "source", source, "error", err)
		}
		report.Summary = summary
	}

	report.Duration = time.Since(start)
	p.logger.Info("document ingested", "source", source, "chunks", report.Chunks, "records", report.Records,
		"duration", report.Duration)
	return report, nil
}

func (p *Pipeline) failed(report IngestReport, start time.Time, err error) (IngestReport, error) {
	report.Duration = time.Since(start)
	report.Err = err
	p.logger.Error("ingest failed", "source", report.Source, "records", report.Records, "error", err)
	return report, err
}

// IngestDir ingests every supported file under dir in lexical order. A
// failing document is reported and skipped; the returned error joins every
// per-document failure.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) ([]IngestReport, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && extract.IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeExtractionReadFailure, "walking document directory", ragerr.FieldSource(dir))
	}
	return p.IngestPaths(ctx, paths)
}

// IngestPaths ingests each path in turn, continuing past failures.
func (p *Pipeline) IngestPaths(ctx context.Context, paths []string) ([]IngestReport, error) {
	reports := make([]IngestReport, 0, len(paths))
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := p.Ingest(ctx, path)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, ragerr.Join(errs...)
}

// Answer runs the query pipeline for question and persists the result with
// the records it was grounded on. k <= 0 uses the configured default.
func (p *Pipeline) Answer(ctx context.Context, question string, k int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ragerr.New(ragerr.CodePipelineInvalidInput, "question is empty")
	}
	if k <= 0 {
		k = p.opts.TopK
	}

	qvec, err := p.deps.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodePipelineFailure, "embedding question")
	}
	corpus, err := p.deps.Corpus.ListAll(ctx)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodePipelineFailure, "loading corpus")
	}
	ranked, err := retriever.RetrieveTopK(qvec, corpus, k)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodePipelineFailure, "retrieving context")
	}
	records := retriever.Records(ranked)
	contextText := prompt.BuildContext(records)
	p.logger.Debug("context assembled", "corpus", len(corpus), "retrieved", len(ranked), "k", k)

	answer, err := p.deps.Generator.Generate(ctx, question, contextText)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodePipelineFailure, "generating answer")
	}

	qid, err := p.deps.History.InsertQuestion(ctx, question, answer)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodePipelineFailure, "saving question")
	}
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := p.deps.History.InsertLinks(ctx, qid, ids); err != nil {
		if derr := p.deps.History.DeleteQuestion(context.WithoutCancel(ctx), qid); derr != nil {
			p.logger.Error("removing unlinked question failed", "question_id", qid, "error", derr)
		}
		return nil, ragerr.Wrap(err, ragerr.CodePipelineFailure, "saving question sources", ragerr.FieldQuestionID(qid))
	}

	p.logger.Info("question answered", "question_id", qid, "sources", len(records))
	return &Answer{QuestionID: qid, Question: question, Answer: answer, Context: contextText, Sources: ranked}, nil
}

func (p *Pipeline) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return p.deps.History.ListQuestions(ctx)
}

// Sources returns the ranked links recorded for a question.
func (p *Pipeline) Sources(ctx context.Context, questionID int64) ([]domain.QuestionLink, error) {
	return p.deps.History.ListLinks(ctx, questionID)
}

func (p *Pipeline) DeleteQuestion(ctx context.Context, id int64) error {
	if err := p.deps.History.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	p.logger.Info("question deleted", "question_id", id)
	return nil
}

func (p *Pipeline) DeleteAllQuestions(ctx context.Context) error {
	if err := p.deps.History.DeleteAllQuestions(ctx); err != nil {
		return err
	}
	p.logger.Info("question history cleared")
	return nil
}

// PurgeCorpus removes every record; links to them go too.
func (p *Pipeline) PurgeCorpus(ctx context.Context) error {
	if err := p.deps.Corpus.DeleteAll(ctx); err != nil {
		return err
	}
	p.logger.Info("corpus purged")
	return nil
}

func (p *Pipeline) CorpusSize(ctx context.Context) (int, error) {
	return p.deps.Corpus.Count(ctx)
}
