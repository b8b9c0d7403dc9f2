package accounting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/spendcap/spendcap/internal/cli"
)

// Limit types reported in breach records and log lines.
const (
	LimitCost   = "cost"
	LimitTokens = "tokens"
)

// Breach describes one exceeded ceiling. A single evaluation reports at
// most one breach; cost wins when both ceilings are exceeded.
type Breach struct {
	Type        string
	Current     float64
	Limit       float64
	ExitAtLimit bool
}

// CurrentDisplay renders the current value for the breach's limit type.
func (b *Breach) CurrentDisplay() string {
	if b.Type == LimitCost {
		return cli.FormatUSD(b.Current)
	}
	return cli.FormatNumber(int64(b.Current))
}

// LimitDisplay renders the configured ceiling for the breach's limit type.
func (b *Breach) LimitDisplay() string {
	if b.Type == LimitCost {
		return cli.FormatUSD(b.Limit)
	}
	return cli.FormatNumber(int64(b.Limit))
}

// Message renders the confirmation prompt for this breach.
func (b *Breach) Message() string {
	if b.Type == LimitCost {
		return fmt.Sprintf("Cost limit exceeded: %s >= %s. Continue anyway?",
			b.CurrentDisplay(), b.LimitDisplay())
	}
	return fmt.Sprintf("Token limit exceeded: %s >= %s. Continue anyway?",
		b.CurrentDisplay(), b.LimitDisplay())
}

// checkLimits evaluates the session totals against the configured ceilings
// and returns the first breach, or nil. Ceilings at or below zero are
// disabled. The breach condition is inclusive: exact equality counts.
// Caller holds the lock.
func (h *Handler) checkLimits() *Breach {
	if h.settings == nil {
		return nil
	}

	exitAtLimit := h.settings.GetBool(keyExitAtLimit, false)

	if maxCost := h.settings.GetFloat(keyMaxCost, 0); maxCost > 0 {
		limit := decimal.NewFromFloat(maxCost)
		if h.session.cost.GreaterThanOrEqual(limit) {
			return &Breach{
				Type:        LimitCost,
				Current:     h.session.cost.InexactFloat64(),
				Limit:       maxCost,
				ExitAtLimit: exitAtLimit,
			}
		}
	}

	if maxTokens := h.settings.GetInt64(keyMaxTokens, 0); maxTokens > 0 {
		if h.session.tokens >= uint64(maxTokens) {
			return &Breach{
				Type:        LimitTokens,
				Current:     float64(h.session.tokens),
				Limit:       float64(maxTokens),
				ExitAtLimit: exitAtLimit,
			}
		}
	}

	return nil
}
