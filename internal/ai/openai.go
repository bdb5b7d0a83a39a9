package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures the OpenAI-compatible provider client.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL is optional; empty means the official OpenAI endpoint. Set it
	// to route through an OpenAI-compatible gateway.
	BaseURL string

	// RequestsPerSecond throttles outgoing model calls across completions and
	// embeddings. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Defaults to 4 when throttling is on.
	Burst int
}

// OpenAI implements Provider against the OpenAI API.
// Safe for concurrent use; the rate limiter is shared across call types.
type OpenAI struct {
	client  openai.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOpenAI creates an OpenAI provider client.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing provider api key")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 4
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &OpenAI{
		client:  openai.NewClient(opts...),
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Complete performs a single-turn chat completion.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if err := o.wait(ctx); err != nil {
		return Completion{}, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("chat completion returned no choices")
	}

	o.logger.Debug("chat completion",
		"model", req.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Embed generates embeddings for all inputs in one batched round-trip.
func (o *OpenAI) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResult, error) {
	if len(req.Inputs) == 0 {
		return EmbeddingResult{}, errors.New("no inputs to embed")
	}
	if err := o.wait(ctx); err != nil {
		return EmbeddingResult{}, err
	}

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(req.Model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: req.Inputs,
		},
	})
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) != len(req.Inputs) {
		return EmbeddingResult{}, fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(resp.Data), len(req.Inputs))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}

	o.logger.Debug("embeddings generated",
		"model", req.Model,
		"inputs", len(req.Inputs),
		"tokens", resp.Usage.TotalTokens)

	return EmbeddingResult{
		Vectors: vectors,
		Usage: Usage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// wait blocks until the rate limiter admits another call.
func (o *OpenAI) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
