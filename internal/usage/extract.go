package usage

// counts is the raw extraction result before normalization. hasTotal
// distinguishes "total reported as zero" from "total not reported".
type counts struct {
	prompt     uint64
	completion uint64
	total      uint64
	hasTotal   bool
}

func (c counts) empty() bool {
	return c.prompt == 0 && c.completion == 0 && c.total == 0
}

// extractor pulls usage out of one known payload shape. Returns false when
// the shape is absent or empty so the next extractor in the chain runs.
type extractor func(*Response) (counts, bool)

// chain is ordered: response-level metadata wins over the structured usage
// field, which wins over per-generation metadata.
var chain = []extractor{
	fromOutputBag,
	fromUsageField,
	fromGenerations,
}

// Extract normalizes a response into an Event. The second return value is a
// model-name override carried in the response metadata, or "" when absent.
// The override must only affect rate resolution for future calls; the call
// being recorded is always priced at the rates in effect when it started.
//
// A response reporting only a total is split 90/10 between prompt and
// completion. That ratio is a documented approximation for providers that
// do not break usage down, not a measurement.
func Extract(r *Response) (Event, string) {
	if r == nil {
		return Event{}, ""
	}

	var c counts
	for _, ex := range chain {
		if got, ok := ex(r); ok {
			c = got
			break
		}
	}

	ev := Event{
		PromptTokens:     c.prompt,
		CompletionTokens: c.completion,
	}
	if c.hasTotal {
		ev.TotalTokens = c.total
	} else {
		ev.TotalTokens = c.prompt + c.completion
	}

	if ev.TotalTokens > 0 && ev.PromptTokens == 0 && ev.CompletionTokens == 0 {
		ev.PromptTokens = ev.TotalTokens * 9 / 10
		ev.CompletionTokens = ev.TotalTokens - ev.PromptTokens
	}

	return ev, modelOverride(r)
}

// fromOutputBag reads the response-level metadata bag: a token_usage
// mapping with prompt/completion names, or a generic usage mapping with
// input/output names.
func fromOutputBag(r *Response) (counts, bool) {
	if r.Output == nil {
		return counts{}, false
	}

	if tu, ok := asMap(r.Output["token_usage"]); ok {
		var c counts
		c.prompt, _ = asUint(tu["prompt_tokens"])
		c.completion, _ = asUint(tu["completion_tokens"])
		c.total, c.hasTotal = asUint(tu["total_tokens"])
		if !c.empty() {
			return c, true
		}
	}

	if u, ok := asMap(r.Output["usage"]); ok {
		var c counts
		c.prompt, _ = asUint(u["input_tokens"])
		c.completion, _ = asUint(u["output_tokens"])
		if !c.empty() {
			return c, true
		}
	}

	return counts{}, false
}

// fromUsageField reads the structured top-level usage field.
func fromUsageField(r *Response) (counts, bool) {
	if r.Usage == nil {
		return counts{}, false
	}
	c := counts{
		prompt:     r.Usage.PromptTokens,
		completion: r.Usage.CompletionTokens,
		total:      r.Usage.TotalTokens,
		hasTotal:   r.Usage.TotalTokens > 0,
	}
	return c, !c.empty()
}

// fromGenerations scans candidate completions in order and stops at the
// first generation carrying usage: either a generation_info.usage mapping,
// or message-level usage_metadata with input/output names (with a
// total-only fallback for providers that report nothing else).
func fromGenerations(r *Response) (counts, bool) {
	for _, group := range r.Generations {
		if len(group) == 0 {
			continue
		}
		gen := group[0]

		if u, ok := asMap(gen.GenerationInfo["usage"]); ok {
			var c counts
			c.prompt, _ = asUint(u["prompt_tokens"])
			c.completion, _ = asUint(u["completion_tokens"])
			c.total, c.hasTotal = asUint(u["total_tokens"])
			if !c.empty() {
				return c, true
			}
		}

		if gen.Message != nil && len(gen.Message.UsageMetadata) > 0 {
			md := gen.Message.UsageMetadata
			var c counts
			c.prompt, _ = asUint(md["input_tokens"])
			c.completion, _ = asUint(md["output_tokens"])
			if c.prompt == 0 && c.completion == 0 {
				c.total, c.hasTotal = asUint(md["total_tokens"])
			}
			if !c.empty() {
				return c, true
			}
		}
	}
	return counts{}, false
}

// modelOverride returns the model name the response reports itself as, if any.
func modelOverride(r *Response) string {
	if r.Output == nil {
		return ""
	}
	if name, ok := r.Output["model_name"].(string); ok {
		return name
	}
	return ""
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && len(m) > 0
}

// asUint coerces the numeric types JSON decoding and SDK structs produce.
// Negative and fractional values are not valid token counts.
func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
