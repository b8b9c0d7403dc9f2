package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFromTokenUsageBag(t *testing.T) {
	r := &Response{
		Output: map[string]any{
			"token_usage": map[string]any{
				"prompt_tokens":     1000,
				"completion_tokens": 500,
				"total_tokens":      1500,
			},
		},
	}

	ev, override := Extract(r)
	assert.Equal(t, uint64(1000), ev.PromptTokens)
	assert.Equal(t, uint64(500), ev.CompletionTokens)
	assert.Equal(t, uint64(1500), ev.TotalTokens)
	assert.Equal(t, "", override)
}

func TestExtractFromGenericUsageBag(t *testing.T) {
	// Anthropic-style input/output naming gets renamed to prompt/completion.
	r := &Response{
		Output: map[string]any{
			"usage": map[string]any{
				"input_tokens":  float64(300),
				"output_tokens": float64(120),
			},
		},
	}

	ev, _ := Extract(r)
	assert.Equal(t, uint64(300), ev.PromptTokens)
	assert.Equal(t, uint64(120), ev.CompletionTokens)
	assert.Equal(t, uint64(420), ev.TotalTokens)
}

func TestExtractFromUsageField(t *testing.T) {
	r := &Response{
		Usage: &Usage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20},
	}

	ev, _ := Extract(r)
	assert.Equal(t, uint64(12), ev.PromptTokens)
	assert.Equal(t, uint64(8), ev.CompletionTokens)
	assert.Equal(t, uint64(20), ev.TotalTokens)
}

func TestExtractOutputBagWinsOverUsageField(t *testing.T) {
	r := &Response{
		Output: map[string]any{
			"token_usage": map[string]any{
				"prompt_tokens":     100,
				"completion_tokens": 50,
			},
		},
		Usage: &Usage{PromptTokens: 999, CompletionTokens: 999},
	}

	ev, _ := Extract(r)
	assert.Equal(t, uint64(100), ev.PromptTokens)
	assert.Equal(t, uint64(50), ev.CompletionTokens)
}

func TestExtractFromGenerationInfo(t *testing.T) {
	r := &Response{
		Generations: [][]Generation{{
			{GenerationInfo: map[string]any{
				"usage": map[string]any{
					"prompt_tokens":     int64(77),
					"completion_tokens": int64(23),
				},
			}},
		}},
	}

	ev, _ := Extract(r)
	assert.Equal(t, uint64(77), ev.PromptTokens)
	assert.Equal(t, uint64(23), ev.CompletionTokens)
	assert.Equal(t, uint64(100), ev.TotalTokens)
}

func TestExtractFromMessageUsageMetadata(t *testing.T) {
	r := &Response{
		Generations: [][]Generation{{
			{Message: &Message{UsageMetadata: map[string]any{
				"input_tokens":  250,
				"output_tokens": 50,
			}}},
		}},
	}

	ev, _ := Extract(r)
	assert.Equal(t, uint64(250), ev.PromptTokens)
	assert.Equal(t, uint64(50), ev.CompletionTokens)
}

func TestExtractScansGenerationsInOrder(t *testing.T) {
	r := &Response{
		Generations: [][]Generation{
			{{GenerationInfo: map[string]any{}}}, // no usage here
			{{Message: &Message{UsageMetadata: map[string]any{
				"input_tokens":  10,
				"output_tokens": 5,
			}}}},
		},
	}

	ev, _ := Extract(r)
	assert.Equal(t, uint64(10), ev.PromptTokens)
	assert.Equal(t, uint64(5), ev.CompletionTokens)
}

func TestExtractTotalOnlySplitsNinetyTen(t *testing.T) {
	r := &Response{
		Generations: [][]Generation{{
			{Message: &Message{UsageMetadata: map[string]any{
				"total_tokens": 1500,
			}}},
		}},
	}

	ev, _ := Extract(r)
	assert.Equal(t, uint64(1350), ev.PromptTokens)
	assert.Equal(t, uint64(150), ev.CompletionTokens)
	assert.Equal(t, uint64(1500), ev.TotalTokens)
}

func TestExtractUnrecognizedShapeIsEmpty(t *testing.T) {
	ev, override := Extract(&Response{Output: map[string]any{"id": "resp_123"}})
	assert.True(t, ev.Empty())
	assert.Equal(t, "", override)

	ev, _ = Extract(nil)
	assert.True(t, ev.Empty())
}

func TestExtractModelOverride(t *testing.T) {
	r := &Response{
		Output: map[string]any{
			"model_name": "claude-3-7-sonnet-20250219",
			"token_usage": map[string]any{
				"prompt_tokens":     1,
				"completion_tokens": 1,
			},
		},
	}

	_, override := Extract(r)
	assert.Equal(t, "claude-3-7-sonnet-20250219", override)
}

func TestAsUintRejectsInvalid(t *testing.T) {
	if _, ok := asUint(-5); ok {
		t.Error("negative int accepted")
	}
	if _, ok := asUint(1.5); ok {
		t.Error("fractional float accepted")
	}
	if _, ok := asUint("100"); ok {
		t.Error("string accepted")
	}
}
