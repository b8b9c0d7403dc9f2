package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	info ModelInfo
	ok   bool
}

func (f fakeLookup) ModelInfo(model, provider string) (ModelInfo, bool) {
	return f.info, f.ok
}

func TestResolveUsesLookupWhenBothRatesPresent(t *testing.T) {
	lookup := fakeLookup{
		info: ModelInfo{InputCostPerToken: 0.000002, OutputCostPerToken: 0.000008},
		ok:   true,
	}

	r := Resolve(lookup, "some-model", "openai")
	require.True(t, r.Known)

	rate := r.RateFor(1000)
	assert.True(t, rate.Input.Equal(decimal.NewFromFloat(0.000002)))
	assert.True(t, rate.Output.Equal(decimal.NewFromFloat(0.000008)))
}

func TestResolveFallsToTableWhenLookupIncomplete(t *testing.T) {
	// A lookup hit with a zero output rate is not usable.
	lookup := fakeLookup{
		info: ModelInfo{InputCostPerToken: 0.000002},
		ok:   true,
	}

	r := Resolve(lookup, "claude-3-7-sonnet-20250219", "anthropic")
	require.True(t, r.Known)

	rate := r.RateFor(1000)
	assert.True(t, rate.Input.Equal(decimal.RequireFromString("0.000003")))
	assert.True(t, rate.Output.Equal(decimal.RequireFromString("0.000015")))
}

func TestResolveUnknownModelIsZero(t *testing.T) {
	r := Resolve(nil, "no-such-model", "")
	assert.False(t, r.Known)

	rate := r.RateFor(123)
	assert.True(t, rate.Input.IsZero())
	assert.True(t, rate.Output.IsZero())
	assert.True(t, r.Cost(1000, 500).IsZero())
}

func TestTieredRateBoundary(t *testing.T) {
	r := Resolve(nil, "gemini-2.5-pro-preview-03-25", "")
	require.True(t, r.Known)

	// Exactly at the threshold stays under-tier; strictly greater crosses.
	under := r.RateFor(200_000)
	assert.True(t, under.Input.Equal(decimal.RequireFromString("0.00000125")))
	assert.True(t, under.Output.Equal(decimal.RequireFromString("0.00001000")))

	over := r.RateFor(200_001)
	assert.True(t, over.Input.Equal(decimal.RequireFromString("0.00000250")))
	assert.True(t, over.Output.Equal(decimal.RequireFromString("0.00001500")))
}

func TestCostClaude37Scenario(t *testing.T) {
	r := Resolve(nil, "claude-3-7-sonnet-20250219", "anthropic")
	require.True(t, r.Known)

	cost := r.Cost(1000, 500)
	assert.True(t, cost.Equal(decimal.RequireFromString("0.0105")),
		"cost = %s, want 0.0105", cost)
}

func TestCostAccumulationNoDrift(t *testing.T) {
	r := Resolve(nil, "claude-3-7-sonnet-20250219", "anthropic")
	require.True(t, r.Known)

	// 10,000 fractional-cent accumulations must sum exactly.
	total := decimal.Zero
	for i := 0; i < 10_000; i++ {
		total = total.Add(r.Cost(137, 41))
	}

	perCall := decimal.RequireFromString("0.000003").Mul(decimal.NewFromInt(137)).
		Add(decimal.RequireFromString("0.000015").Mul(decimal.NewFromInt(41)))
	want := perCall.Mul(decimal.NewFromInt(10_000))
	assert.True(t, total.Equal(want), "total = %s, want %s", total, want)
}
