package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/exam-engine/internal/model"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o": {Input: 2.50, Output: 10.00},
		},
		Gemini: map[string]ModelRate{
			"flash": {Input: 0.10, Output: 0.40},
		},
	}
}

func TestCompletion(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name     string
		provider string
		model    string
		usage    model.TokenUsage
		want     float64
	}{
		{
			name:     "anthropic sonnet",
			provider: "anthropic",
			model:    "sonnet",
			usage:    model.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000},
			want:     3.00 + 1.50,
		},
		{
			name:     "openai gpt-4o",
			provider: "openai",
			model:    "gpt-4o",
			usage:    model.TokenUsage{InputTokens: 2_000_000, OutputTokens: 500_000},
			want:     5.00 + 5.00,
		},
		{
			name:     "gemini flash",
			provider: "gemini",
			model:    "flash",
			usage:    model.TokenUsage{InputTokens: 10_000_000, OutputTokens: 1_000_000},
			want:     1.00 + 0.40,
		},
		{
			name:     "unknown model",
			provider: "anthropic",
			model:    "mystery",
			usage:    model.TokenUsage{InputTokens: 1_000_000},
			want:     0,
		},
		{
			name:     "unknown provider",
			provider: "mistral",
			model:    "large",
			usage:    model.TokenUsage{InputTokens: 1_000_000},
			want:     0,
		},
		{
			name:     "zero usage",
			provider: "gemini",
			model:    "flash",
			usage:    model.TokenUsage{},
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Completion(tt.provider, tt.model, tt.usage)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.NotEmpty(t, rates.Anthropic)
	assert.NotEmpty(t, rates.OpenAI)
	assert.NotEmpty(t, rates.Gemini)

	// Every default rate is positive.
	for _, table := range []map[string]ModelRate{rates.Anthropic, rates.OpenAI, rates.Gemini} {
		for name, r := range table {
			assert.Greater(t, r.Input, 0.0, name)
			assert.Greater(t, r.Output, 0.0, name)
		}
	}
}
