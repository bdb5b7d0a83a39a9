package rag

import (
	"math"
	"testing"

	"github.com/digitizerx/digitizerx/internal/ai"
)

func TestUsage_AddChat(t *testing.T) {
	tests := []struct {
		name string
		add  []ai.Usage
		want Usage
	}{
		{
			name: "single call",
			add:  []ai.Usage{{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140}},
			want: Usage{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140},
		},
		{
			name: "missing total falls back to sum",
			add:  []ai.Usage{{PromptTokens: 100, CompletionTokens: 40}},
			want: Usage{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140},
		},
		{
			name: "accumulates across calls",
			add: []ai.Usage{
				{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140},
				{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			},
			want: Usage{PromptTokens: 110, CompletionTokens: 45, TotalTokens: 155},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u Usage
			for _, a := range tt.add {
				u.AddChat(a)
			}
			if u != tt.want {
				t.Errorf("got %+v, want %+v", u, tt.want)
			}
		})
	}
}

func TestUsage_AddEmbedding(t *testing.T) {
	var u Usage
	u.AddEmbedding(ai.Usage{TotalTokens: 30})
	u.AddEmbedding(ai.Usage{PromptTokens: 12}) // no total reported

	want := Usage{EmbeddingTokens: 42, TotalTokens: 42}
	if u != want {
		t.Errorf("got %+v, want %+v", u, want)
	}
}

func TestUsage_Estimate(t *testing.T) {
	pricing := Pricing{ChatIn: 0.00015, ChatOut: 0.0006, Embed: 0.00002}

	u := Usage{PromptTokens: 2000, CompletionTokens: 1000, EmbeddingTokens: 5000}
	c := u.Estimate(pricing)

	if got, want := c.Input, 0.0003; !closeTo(got, want) {
		t.Errorf("Input = %v, want %v", got, want)
	}
	if got, want := c.Output, 0.0006; !closeTo(got, want) {
		t.Errorf("Output = %v, want %v", got, want)
	}
	if got, want := c.Embedding, 0.0001; !closeTo(got, want) {
		t.Errorf("Embedding = %v, want %v", got, want)
	}
	if got, want := c.Total, c.Input+c.Output+c.Embedding; !closeTo(got, want) {
		t.Errorf("Total = %v, want %v", got, want)
	}
	if c.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", c.Currency)
	}
}

// Doubling every token count must double every cost component.
func TestUsage_EstimateLinear(t *testing.T) {
	pricing := Pricing{ChatIn: 0.00015, ChatOut: 0.0006, Embed: 0.00002}

	u := Usage{PromptTokens: 1234, CompletionTokens: 567, EmbeddingTokens: 890}
	double := Usage{
		PromptTokens:     u.PromptTokens * 2,
		CompletionTokens: u.CompletionTokens * 2,
		EmbeddingTokens:  u.EmbeddingTokens * 2,
	}

	c1 := u.Estimate(pricing)
	c2 := double.Estimate(pricing)

	if !closeTo(c2.Total, 2*c1.Total) {
		t.Errorf("doubled usage cost = %v, want %v", c2.Total, 2*c1.Total)
	}
}

func TestUsage_EstimateZero(t *testing.T) {
	var u Usage
	c := u.Estimate(Pricing{ChatIn: 0.00015, ChatOut: 0.0006, Embed: 0.00002})
	if c.Total != 0 {
		t.Errorf("Total = %v, want 0", c.Total)
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}
