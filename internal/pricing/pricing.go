// Package pricing resolves per-token cost rates for LLM models.
//
// Rates are decimal fractions of a dollar per single token (e.g. 0.000003
// is $3 per million input tokens). All arithmetic on rates and costs uses
// shopspring/decimal so repeated accumulation never drifts the way float64
// math would.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Rate is a pair of per-token cost rates.
type Rate struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// TableEntry holds the static pricing for one model. An entry is either
// flat (Input/Output) or tiered on the current call's prompt token count
// (TierThreshold plus the four under/over rates).
type TableEntry struct {
	Input  decimal.Decimal
	Output decimal.Decimal

	TierThreshold uint64
	InputUnder    decimal.Decimal
	InputOver     decimal.Decimal
	OutputUnder   decimal.Decimal
	OutputOver    decimal.Decimal
}

// Tiered reports whether the entry uses threshold-based pricing.
func (e TableEntry) Tiered() bool { return e.TierThreshold > 0 }

var d = decimal.RequireFromString

// Table maps exact model identifiers to their static pricing.
// Consulted when the lookup service has no usable rates for a model.
var Table = map[string]TableEntry{
	"claude-3-7-sonnet-20250219": {Input: d("0.000003"), Output: d("0.000015")},
	"claude-3-opus-20240229":     {Input: d("0.000015"), Output: d("0.000075")},
	"claude-3-sonnet-20240229":   {Input: d("0.000003"), Output: d("0.000015")},
	"claude-3-haiku-20240307":    {Input: d("0.00000025"), Output: d("0.00000125")},
	"claude-2":                   {Input: d("0.00001102"), Output: d("0.00003268")},
	"claude-instant-1":           {Input: d("0.00000163"), Output: d("0.00000551")},
	"anthropic/claude-sonnet-4":  {Input: d("0.000003"), Output: d("0.000015")},

	"google/gemini-2.5-pro-exp-03-25:free": {Input: d("0"), Output: d("0")},

	// Gemini 2.5 Pro charges a higher rate once a single call's prompt
	// crosses 200K tokens.
	"google/gemini-2.5-pro-exp-03-25":     geminiTiered(),
	"gemini-2.5-pro-exp-03-25":            geminiTiered(),
	"google/gemini-2.5-pro-preview-03-25": geminiTiered(),
	"gemini-2.5-pro-preview-03-25":        geminiTiered(),
	"google/gemini-2.5-pro-preview-05-06": geminiTiered(),
	"gemini-2.5-pro-preview-05-06":        geminiTiered(),

	"deepseek/deepseek-chat-v3-0324":           {Input: d("0.00000027"), Output: d("0.0000011")},
	"mistralai/mistral-small-3.1-24b-instruct": {Input: d("0.0001"), Output: d("0.0003")},
	"mistral-nemo":                             {Input: d("0.00015"), Output: d("0.00015")},
	"mistral-large-24b11":                      {Input: d("0.002"), Output: d("0.006")},
}

func geminiTiered() TableEntry {
	return TableEntry{
		TierThreshold: 200_000,
		InputUnder:    d("0.00000125"), // $1.25/M
		InputOver:     d("0.00000250"), // $2.50/M
		OutputUnder:   d("0.00001000"), // $10.00/M
		OutputOver:    d("0.00001500"), // $15.00/M
	}
}

// ModelInfo is the rate data returned by a pricing lookup service.
// The JSON field names follow the community model-prices format.
type ModelInfo struct {
	Provider           string  `json:"litellm_provider,omitempty"`
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
}

// Lookup resolves pricing for a (model, provider) pair from an external
// source. Implementations must be safe for concurrent use.
type Lookup interface {
	ModelInfo(model, provider string) (ModelInfo, bool)
}

// Resolved holds the cost rates in effect for one model.
type Resolved struct {
	Model string
	// Known is false when no pricing source matched and the rates are zero.
	Known bool

	flat Rate
	tier *TableEntry
}

// Resolve determines the rates for a model. Resolution order: the lookup
// service (used only when it reports non-zero input AND output rates, always
// flat), then the static table, then zero rates with Known=false.
func Resolve(lookup Lookup, model, provider string) Resolved {
	if lookup != nil {
		if info, ok := lookup.ModelInfo(model, provider); ok {
			if info.InputCostPerToken > 0 && info.OutputCostPerToken > 0 {
				return Resolved{
					Model: model,
					Known: true,
					flat: Rate{
						Input:  decimal.NewFromFloat(info.InputCostPerToken),
						Output: decimal.NewFromFloat(info.OutputCostPerToken),
					},
				}
			}
		}
	}

	if entry, ok := Table[model]; ok {
		if entry.Tiered() {
			e := entry
			return Resolved{
				Model: model,
				Known: true,
				flat:  Rate{Input: entry.InputUnder, Output: entry.OutputUnder},
				tier:  &e,
			}
		}
		return Resolved{
			Model: model,
			Known: true,
			flat:  Rate{Input: entry.Input, Output: entry.Output},
		}
	}

	return Resolved{Model: model}
}

// RateFor returns the applicable rates for a call with the given prompt
// token count. The tier boundary is exclusive: exactly TierThreshold prompt
// tokens still bills at the under-tier rate.
func (r Resolved) RateFor(promptTokens uint64) Rate {
	if r.tier != nil && promptTokens > r.tier.TierThreshold {
		return Rate{Input: r.tier.InputOver, Output: r.tier.OutputOver}
	}
	return r.flat
}

// Cost computes the decimal cost of one call at the resolved rates.
func (r Resolved) Cost(promptTokens, completionTokens uint64) decimal.Decimal {
	rate := r.RateFor(promptTokens)
	in := decimal.NewFromUint64(promptTokens).Mul(rate.Input)
	out := decimal.NewFromUint64(completionTokens).Mul(rate.Output)
	return in.Add(out)
}
