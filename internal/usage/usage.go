// Package usage normalizes heterogeneous LLM response payloads into a
// canonical token-usage event.
package usage

// Event is the canonical usage for one LLM call.
type Event struct {
	PromptTokens     uint64
	CompletionTokens uint64
	TotalTokens      uint64
	// Duration is wall-clock seconds for the call, filled in by the caller.
	Duration float64
}

// Empty reports whether no usage data was found.
func (e Event) Empty() bool {
	return e.PromptTokens == 0 && e.CompletionTokens == 0 && e.TotalTokens == 0
}

// Usage is a structured token-usage field as some providers report it.
type Usage struct {
	PromptTokens     uint64 `json:"prompt_tokens"`
	CompletionTokens uint64 `json:"completion_tokens"`
	TotalTokens      uint64 `json:"total_tokens"`
}

// Message carries per-message metadata from providers that attach usage to
// the generated message rather than the response envelope.
type Message struct {
	UsageMetadata map[string]any `json:"usage_metadata,omitempty"`
}

// Generation is one candidate completion within a response.
type Generation struct {
	GenerationInfo map[string]any `json:"generation_info,omitempty"`
	Message        *Message       `json:"message,omitempty"`
}

// Response is the provider-agnostic view of an LLM call result. Fields are
// optional; vendors populate different subsets.
type Response struct {
	// Output is the response-level metadata bag (token_usage, usage,
	// model_name and whatever else the provider tucked in).
	Output map[string]any `json:"output,omitempty"`
	// Usage is a structured top-level usage field.
	Usage *Usage `json:"usage,omitempty"`
	// Generations holds candidate completions, grouped per prompt.
	Generations [][]Generation `json:"generations,omitempty"`
}
