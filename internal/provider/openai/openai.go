// Package openai implements the embedding and generation providers on top of
// the OpenAI API (or any compatible endpoint).
package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"golang.org/x/time/rate"

	"ragqa/internal/domain"
	"ragqa/internal/prompt"
	"ragqa/internal/ragerr"
)

const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"
	DefaultTemperature    = 0.2
	DefaultTimeout        = 60 * time.Second
)

var (
	_ domain.EmbeddingProvider  = (*Provider)(nil)
	_ domain.GenerationProvider = (*Provider)(nil)
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey         string
	BaseURL        string // optional, useful for testing against a mock server
	EmbeddingModel string
	ChatModel      string
	Temperature    float64
	Timeout        time.Duration
	MaxRetries     int

	// RequestsPerSecond throttles outgoing calls when positive.
	RequestsPerSecond float64
	Burst             int
}

// Provider embeds text and generates answers. It is safe for concurrent use.
type Provider struct {
	client  openaisdk.Client
	config  Config
	limiter *rate.Limiter
}

// New creates a provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ragerr.New(ragerr.CodeProviderRequestInvalid, "openai: missing api_key in config")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	p := &Provider{client: openaisdk.NewClient(opts...), config: cfg}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p, nil
}

func (p *Provider) Name() string { return "openai" }

// Embed returns the embedding of text as float32 values.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ragerr.New(ragerr.CodeProviderRequestInvalid, "openai: cannot embed empty text")
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model:          openaisdk.EmbeddingModel(p.config.EmbeddingModel),
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, classify(ctx, err, "openai: embedding request")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ragerr.New(ragerr.CodeProviderResponseInvalid, "openai: embedding response has no data",
			ragerr.Field("model", p.config.EmbeddingModel))
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Generate asks the chat model to answer question from the assembled
// context only.
func (p *Provider) Generate(ctx context.Context, question, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	if err := p.wait(ctx); err != nil {
		return "", err
	}

	resp, err := p.client.Chat.Completions.New(ctx, buildChatParams(p.config, question, contextText))
	if err != nil {
		return "", classify(ctx, err, "openai: chat completion request")
	}
	if len(resp.Choices) == 0 {
		return "", ragerr.New(ragerr.CodeProviderResponseInvalid, "openai: chat response has no choices",
			ragerr.Field("model", p.config.ChatModel))
	}
	return resp.Choices[0].Message.Content, nil
}

func buildChatParams(cfg Config, question, contextText string) openaisdk.ChatCompletionNewParams {
	return openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(cfg.ChatModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(prompt.SystemInstruction),
			openaisdk.UserMessage(prompt.UserPrompt(question, contextText)),
		},
		Temperature: param.NewOpt(cfg.Temperature),
	}
}

func (p *Provider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return classify(ctx, err, "openai: waiting for rate limiter")
	}
	return nil
}

// classify maps transport and API failures onto provider error codes.
func classify(ctx context.Context, err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ragerr.Wrap(err, ragerr.CodeProviderTimeout, msg)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		code := ragerr.CodeProviderUpstreamFailure
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
			code = ragerr.CodeProviderRequestInvalid
		}
		return ragerr.Wrap(err, code, msg, ragerr.Field("status", status))
	}
	return ragerr.Wrap(err, ragerr.CodeProviderUpstreamFailure, msg)
}
