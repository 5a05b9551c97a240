package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/extract"
	"ragqa/internal/provider/openai"
	"ragqa/internal/ragerr"
	"ragqa/internal/service"
	"ragqa/internal/store/memory"
	"ragqa/internal/store/sqlite"
	"ragqa/internal/summarizer"
)

type backend interface {
	domain.CorpusStore
	domain.AnswerHistoryStore
	Close() error
}

// app is the wired set of components a command runs against.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	store    backend
	pipeline *service.Pipeline
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadApp reads configuration and wires the pipeline. Commands that never
// call a provider pass needProvider=false so they work without an API key.
func loadApp(cmd *cobra.Command, needProvider bool) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)
	slog.SetDefault(logger)

	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFiles(envFile); err != nil {
		return nil, err
	}

	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "path", path, "backend", cfg.Storage.Backend)
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ragerr.Wrap(ragerr.Join(errs...), ragerr.CodeConfigInvalidValue, "invalid configuration")
	}

	deps := service.Deps{
		Extractor: extract.New(logger),
		Chunker:   chunker.NewWordChunker(cfg.Chunker.MinSize, cfg.Chunker.MaxSize),
	}
	if cfg.Summarizer.Type == "frequency" {
		deps.Summarizer = summarizer.NewFrequencySummarizer()
	}

	if needProvider {
		p, err := openai.New(openai.Config{
			APIKey:            cfg.APIKey(),
			BaseURL:           cfg.Provider.BaseURL,
			EmbeddingModel:    cfg.Provider.EmbeddingModel,
			ChatModel:         cfg.Provider.ChatModel,
			Temperature:       cfg.Temperature(),
			Timeout:           cfg.Timeout(),
			MaxRetries:        cfg.MaxRetries(),
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			Burst:             cfg.Provider.Burst,
		})
		if err != nil {
			return nil, ragerr.Wrapf(err, ragerr.CodeProviderRequestInvalid, "configuring provider (set %s)", cfg.Provider.APIKeyEnv)
		}
		deps.Embedder = p
		deps.Generator = p
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	deps.Corpus = store
	deps.History = store

	pipeline := service.NewPipeline(deps, service.Options{
		TopK:             cfg.Retrieval.TopK,
		SummarySentences: cfg.Summarizer.MaxSentences,
	}, logger)
	return &app{cfg: cfg, logger: logger, store: store, pipeline: pipeline}, nil
}

func loadConfig(cmd *cobra.Command) (*config.AppConfig, string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, "", ragerr.Wrap(err, ragerr.CodeConfigReadFailure, "config file not found", ragerr.Field("path", path))
		}
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	return config.LoadDefault()
}

func openStore(cfg *config.AppConfig) (backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil
	case config.BackendSQLite:
		return sqlite.NewStore(cfg.Storage.Path)
	default:
		return nil, ragerr.New(ragerr.CodeConfigInvalidValue, fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend))
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
