// Package config loads the YAML application configuration, the optional
// .env file and the RAG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ragqa/internal/ragerr"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// ProviderConfig configures the OpenAI-compatible embedding and chat endpoints.
type ProviderConfig struct {
	Type              string   `yaml:"type"`
	BaseURL           string   `yaml:"base_url,omitempty"`
	APIKeyEnv         string   `yaml:"api_key_env"`
	EmbeddingModel    string   `yaml:"embedding_model"`
	ChatModel         string   `yaml:"chat_model"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	TimeoutSecs       int      `yaml:"timeout_secs"`
	MaxRetries        *int     `yaml:"max_retries,omitempty"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

// ChunkerConfig bounds chunk length in characters.
type ChunkerConfig struct {
	MinSize int `yaml:"min_size"`
	MaxSize int `yaml:"max_size"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// StorageConfig selects where the corpus and history live.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// SummarizerConfig selects and configures the ingest report summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			ApplyEnv(cfg)
			return cfg, nil
		}
		return nil, ragerr.Wrap(err, ragerr.CodeConfigReadFailure, "reading config", ragerr.Field("path", path))
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeConfigInvalidFormat, "parsing config", ragerr.Field("path", path))
	}
	applyDefaults(&cfg)
	ApplyEnv(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", ragerr.Wrap(err, ragerr.CodeConfigReadFailure, "locating user config")
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	ApplyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ragerr.Wrap(err, ragerr.CodeConfigReadFailure, "creating config directory", ragerr.Field("path", path))
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeConfigInvalidFormat, "encoding config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ragerr.Wrap(err, ragerr.CodeConfigReadFailure, "writing config", ragerr.Field("path", path))
	}
	return nil
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return ragerr.Wrap(err, ragerr.CodeConfigInvalidFormat, "loading env file", ragerr.Field("path", p))
		}
	}
	return nil
}

// ApplyEnv overrides file settings from RAG_* variables.
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv("RAG_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RAG_DATA_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("RAG_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("RAG_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
}

// APIKey returns the provider key from the configured environment variable.
func (c *AppConfig) APIKey() string {
	return os.Getenv(c.Provider.APIKeyEnv)
}

// Timeout is the per-call provider deadline.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSecs) * time.Second
}

func (c *AppConfig) Temperature() float64 {
	if c.Provider.Temperature == nil {
		return 0.2
	}
	return *c.Provider.Temperature
}

// MaxRetries is the provider retry count; an explicit zero disables retries.
func (c *AppConfig) MaxRetries() int {
	if c.Provider.MaxRetries == nil {
		return 2
	}
	return *c.Provider.MaxRetries
}

// Validate reports every problem found rather than stopping at the first.
func (c *AppConfig) Validate() []error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, ragerr.New(ragerr.CodeConfigInvalidValue, fmt.Sprintf(format, args...), ragerr.Field("field", field)))
	}

	if c.Provider.Type != "openai" {
		invalid("provider.type", "unknown provider %q", c.Provider.Type)
	}
	if c.Provider.TimeoutSecs <= 0 {
		invalid("provider.timeout_secs", "timeout must be positive, got %d", c.Provider.TimeoutSecs)
	}
	if c.MaxRetries() < 0 {
		invalid("provider.max_retries", "max retries cannot be negative")
	}
	if c.Provider.RequestsPerSecond < 0 {
		invalid("provider.requests_per_second", "rate cannot be negative")
	}
	if t := c.Temperature(); t < 0 || t > 2 {
		invalid("provider.temperature", "temperature %.2f outside [0, 2]", t)
	}
	if c.Chunker.MinSize <= 0 || c.Chunker.MaxSize <= 0 {
		invalid("chunker", "chunk bounds must be positive")
	} else if c.Chunker.MinSize > c.Chunker.MaxSize {
		invalid("chunker", "min_size %d exceeds max_size %d", c.Chunker.MinSize, c.Chunker.MaxSize)
	}
	if c.Retrieval.TopK <= 0 {
		invalid("retrieval.top_k", "top_k must be positive, got %d", c.Retrieval.TopK)
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == "" {
			invalid("storage.path", "sqlite backend needs a path")
		}
	case BackendMemory:
	default:
		invalid("storage.backend", "unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Summarizer.Type {
	case "frequency", "none":
	default:
		invalid("summarizer.type", "unknown summarizer %q", c.Summarizer.Type)
	}
	return errs
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	p := &cfg.Provider
	if p.Type == "" {
		p.Type = "openai"
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = DefaultAPIKeyEnv
	}
	if p.EmbeddingModel == "" {
		p.EmbeddingModel = "text-embedding-3-small"
	}
	if p.ChatModel == "" {
		p.ChatModel = "gpt-4o-mini"
	}
	if p.Temperature == nil {
		t := 0.2
		p.Temperature = &t
	}
	if p.TimeoutSecs == 0 {
		p.TimeoutSecs = 60
	}
	if p.MaxRetries == nil {
		n := 2
		p.MaxRetries = &n
	}
	if p.Burst == 0 {
		p.Burst = 1
	}
	if cfg.Chunker.MinSize == 0 {
		cfg.Chunker.MinSize = 300
	}
	if cfg.Chunker.MaxSize == 0 {
		cfg.Chunker.MaxSize = 800
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendSQLite
	}
	if cfg.Storage.Path == "" && cfg.Storage.Backend == BackendSQLite {
		cfg.Storage.Path = filepath.Join("data", "rag.db")
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8000"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}
