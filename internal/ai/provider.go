// Package ai provides the model-provider client used for chat completions
// and embeddings.
//
// The Provider interface is defined here, by its consumer side, so the RAG
// engine can be tested against a mock without a network dependency. The
// production implementation (openai.go) speaks the OpenAI API, optionally
// through an OpenAI-compatible gateway.
package ai

import "context"

// Usage reports token consumption for a single model call.
// Missing fields from the provider count as zero.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
}

// Completion is the result of a chat completion call.
type Completion struct {
	Text  string
	Usage Usage
}

// EmbeddingRequest embeds one or more inputs in a single batched call.
type EmbeddingRequest struct {
	Model  string
	Inputs []string
}

// EmbeddingResult carries one vector per input, in input order.
type EmbeddingResult struct {
	Vectors [][]float32
	Usage   Usage
}

// Provider is the model-provider capability consumed by the RAG engine.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResult, error)
}
