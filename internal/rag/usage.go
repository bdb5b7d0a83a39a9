package rag

import "github.com/digitizerx/digitizerx/internal/ai"

// Usage accumulates token counts across every model call made while handling
// one request. A fresh accumulator is allocated per request; it is never
// shared across invocations.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	EmbeddingTokens  int64 `json:"embedding_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// AddChat folds a chat completion's usage into the accumulator.
// Missing fields count as zero.
func (u *Usage) AddChat(c ai.Usage) {
	u.PromptTokens += c.PromptTokens
	u.CompletionTokens += c.CompletionTokens

	total := c.TotalTokens
	if total == 0 {
		total = c.PromptTokens + c.CompletionTokens
	}
	u.TotalTokens += total
}

// AddEmbedding folds an embedding call's usage into the accumulator.
func (u *Usage) AddEmbedding(e ai.Usage) {
	tokens := e.TotalTokens
	if tokens == 0 {
		tokens = e.PromptTokens
	}
	u.EmbeddingTokens += tokens
	u.TotalTokens += tokens
}

// Pricing is the static per-1k-token price table, in USD.
type Pricing struct {
	ChatIn  float64
	ChatOut float64
	Embed   float64
}

// Cost is a derived, read-only view over a Usage accumulator and a Pricing
// table. All values in USD.
type Cost struct {
	Input     float64 `json:"input"`
	Output    float64 `json:"output"`
	Embedding float64 `json:"embedding"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
}

// Estimate computes the cost of the accumulated usage. Pure function: it
// never errors, and scaling a token count scales its component linearly.
func (u *Usage) Estimate(p Pricing) Cost {
	c := Cost{
		Input:     float64(u.PromptTokens) / 1000 * p.ChatIn,
		Output:    float64(u.CompletionTokens) / 1000 * p.ChatOut,
		Embedding: float64(u.EmbeddingTokens) / 1000 * p.Embed,
		Currency:  "USD",
	}
	c.Total = c.Input + c.Output + c.Embedding
	return c
}
