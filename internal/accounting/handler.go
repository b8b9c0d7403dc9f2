// Package accounting tracks LLM token usage and spend across a process,
// enforcing configured cost and token ceilings.
//
// One Handler is constructed by the process driver and passed to every
// call site. All accumulation is serialized by a single mutex; the mutex
// is never held across the interactive confirmation prompt.
package accounting

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spendcap/spendcap/internal/cli"
	"github.com/spendcap/spendcap/internal/pricing"
	"github.com/spendcap/spendcap/internal/usage"
)

// Recorder persists trajectory records. Failures are logged and swallowed;
// in-memory totals stay authoritative.
type Recorder interface {
	RecordModelUsage(sessionID string, cost float64, inputTokens, outputTokens uint64, duration float64, model string) error
	RecordLimitReached(sessionID, limitType string, current, limit float64, exitAtLimit bool) error
}

// SessionSource reports the current session id, or "" when none exists.
type SessionSource interface {
	CurrentSessionID() (string, error)
}

// Settings reads runtime limit configuration. Missing keys return the
// given default.
type Settings interface {
	GetFloat(key string, def float64) float64
	GetInt64(key string, def int64) int64
	GetBool(key string, def bool) bool
}

// Confirmer blocks for a human yes/no answer.
type Confirmer interface {
	Confirm(message string, def bool) (bool, error)
}

// Config keys consulted on every limit evaluation.
const (
	keyMaxCost     = "max_cost"
	keyMaxTokens   = "max_tokens"
	keyExitAtLimit = "exit_at_limit"
)

// sessionTotals is the resettable per-session slice of the running totals.
type sessionTotals struct {
	id           string
	cost         decimal.Decimal
	tokens       uint64
	inputTokens  uint64
	outputTokens uint64
	duration     float64
}

// Handler accumulates usage and cost for every LLM call in the process.
type Handler struct {
	mu sync.Mutex

	modelName string
	provider  string
	rates     pricing.Resolved

	// Last-call counters, overwritten on each call.
	promptTokens     uint64
	completionTokens uint64
	totalTokens      uint64

	// Cumulative counters, strictly additive for the process lifetime.
	cumPromptTokens     uint64
	cumCompletionTokens uint64
	cumTotalTokens      uint64

	totalCost          decimal.Decimal
	successfulRequests uint64

	session sessionTotals

	// Remembered answer to the limit prompt. nil until first asked; shared
	// across cost and token breaches.
	decision *bool

	lastStart     time.Time
	pricingNotice bool

	lookup    pricing.Lookup
	recorder  Recorder
	sessions  SessionSource
	settings  Settings
	confirmer Confirmer
	exit      func(int)
	logger    *log.Logger
	quiet     bool
}

// Options configures a Handler. Recorder, Sessions, and Settings are
// required; the rest default to sensible process-level values.
type Options struct {
	ModelName string
	Provider  string

	Lookup    pricing.Lookup
	Recorder  Recorder
	Sessions  SessionSource
	Settings  Settings
	Confirmer Confirmer

	// Exit is called to terminate the process on a limit-directed stop.
	// Defaults to os.Exit.
	Exit func(int)

	Logger *log.Logger

	// Quiet suppresses the unknown-model pricing notice.
	Quiet bool
}

// New builds a Handler and resolves the cost rates for the configured model.
func New(opts Options) *Handler {
	h := &Handler{
		modelName: opts.ModelName,
		provider:  opts.Provider,
		lookup:    opts.Lookup,
		recorder:  opts.Recorder,
		sessions:  opts.Sessions,
		settings:  opts.Settings,
		confirmer: opts.Confirmer,
		exit:      opts.Exit,
		logger:    opts.Logger,
		quiet:     opts.Quiet,
	}
	if h.exit == nil {
		h.exit = os.Exit
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	if h.confirmer == nil {
		h.confirmer = TerminalConfirmer{}
	}

	h.resolveRates()
	return h
}

// resolveRates re-resolves pricing for the current model. Caller holds the
// lock (or the handler is not yet shared).
func (h *Handler) resolveRates() {
	h.rates = pricing.Resolve(h.lookup, h.modelName, h.provider)
	if !h.rates.Known && !h.quiet && !h.pricingNotice {
		h.pricingNotice = true
		cli.Noticef("No pricing found for model %q; costs will be reported as $0.", h.modelName)
	}
}

// OnCallStart marks the beginning of an LLM call for duration tracking.
// A non-empty model name updates the name used for future rate
// resolutions; the rates in effect stay unchanged until the next full
// reset.
func (h *Handler) OnCallStart(model string) {
	h.mu.Lock()
	if model != "" {
		h.modelName = model
	}
	h.lastStart = time.Now()
	h.mu.Unlock()
}

// OnCallEnd extracts usage from a completed response, accumulates it, and
// enforces configured limits. An unrecognized response still counts as a
// successful request with zero usage.
func (h *Handler) OnCallEnd(r *usage.Response) {
	ev, override := usage.Extract(r)
	h.record(ev, override)
}

// record runs the accumulate/evaluate/persist sequence for one usage event.
func (h *Handler) record(ev usage.Event, modelOverride string) {
	h.mu.Lock()

	if !h.lastStart.IsZero() {
		ev.Duration = time.Since(h.lastStart).Seconds()
		h.lastStart = time.Time{}
	} else {
		// No matching start event; charge a nominal duration.
		ev.Duration = 0.1
	}

	h.promptTokens = ev.PromptTokens
	h.completionTokens = ev.CompletionTokens
	h.totalTokens = ev.TotalTokens
	h.cumPromptTokens += ev.PromptTokens
	h.cumCompletionTokens += ev.CompletionTokens
	h.cumTotalTokens += ev.TotalTokens

	// Cost is computed at the rates in effect when the call completed; a
	// model-name override in the response only affects future resolutions.
	cost := h.rates.Cost(ev.PromptTokens, ev.CompletionTokens)
	h.totalCost = h.totalCost.Add(cost)
	h.successfulRequests++

	h.session.cost = h.session.cost.Add(cost)
	h.session.tokens += ev.TotalTokens
	h.session.inputTokens += ev.PromptTokens
	h.session.outputTokens += ev.CompletionTokens
	h.session.duration += ev.Duration

	if modelOverride != "" {
		h.modelName = modelOverride
	}

	breach := h.checkLimits()
	if breach == nil {
		h.persistUsage(ev, cost)
		h.mu.Unlock()
		return
	}

	h.recordBreach(breach)

	switch {
	case h.decision != nil && !*h.decision:
		h.logger.Printf("%s limit still exceeded, exiting as previously requested", breach.Type)
		h.mu.Unlock()
		h.exit(0)
		return

	case h.decision != nil && *h.decision:
		h.persistUsage(ev, cost)
		h.mu.Unlock()
		return

	case breach.ExitAtLimit:
		h.logger.Printf("%s limit reached (%s >= %s), exiting as configured",
			breach.Type, breach.CurrentDisplay(), breach.LimitDisplay())
		h.mu.Unlock()
		h.exit(0)
		return
	}

	// Undecided and interactive: the prompt can block indefinitely, so the
	// lock is dropped first and re-acquired to store the answer.
	h.mu.Unlock()

	cont, err := h.confirmer.Confirm(breach.Message(), false)
	if err != nil {
		h.logger.Printf("limit confirmation failed: %v; exiting", err)
		cont = false
	}

	h.mu.Lock()
	h.decision = &cont
	if cont {
		h.persistUsage(ev, cost)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.logger.Printf("stopping at %s limit as requested", breach.Type)
	h.exit(0)
}

// persistUsage writes the usage record. Caller holds the lock. Store
// failures are logged and swallowed.
func (h *Handler) persistUsage(ev usage.Event, cost decimal.Decimal) {
	if h.recorder == nil {
		return
	}
	sessionID := h.sessionID()
	err := h.recorder.RecordModelUsage(sessionID, cost.InexactFloat64(),
		ev.PromptTokens, ev.CompletionTokens, ev.Duration, h.modelName)
	if err != nil {
		h.logger.Printf("recording usage: %v", err)
	}
}

// recordBreach writes the limit_reached record best-effort. Caller holds
// the lock.
func (h *Handler) recordBreach(b *Breach) {
	if h.recorder == nil {
		return
	}
	err := h.recorder.RecordLimitReached(h.sessionID(), b.Type, b.Current, b.Limit, b.ExitAtLimit)
	if err != nil {
		h.logger.Printf("recording limit breach: %v", err)
	}
}

// sessionID returns the cached session id, resolving it once from the
// session source. Caller holds the lock.
func (h *Handler) sessionID() string {
	if h.session.id != "" {
		return h.session.id
	}
	if h.sessions == nil {
		return ""
	}
	id, err := h.sessions.CurrentSessionID()
	if err != nil {
		h.logger.Printf("resolving session: %v", err)
		return ""
	}
	h.session.id = id
	return id
}

// SessionStats is a point-in-time copy of the per-session totals.
type SessionStats struct {
	SessionID    string          `json:"session_id,omitempty"`
	Cost         decimal.Decimal `json:"cost"`
	Tokens       uint64          `json:"tokens"`
	InputTokens  uint64          `json:"input_tokens"`
	OutputTokens uint64          `json:"output_tokens"`
	Duration     float64         `json:"duration"`
}

// Stats is a point-in-time copy of all running totals.
type Stats struct {
	Model              string          `json:"model"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	SuccessfulRequests uint64          `json:"successful_requests"`

	// Last completed call.
	PromptTokens     uint64 `json:"prompt_tokens"`
	CompletionTokens uint64 `json:"completion_tokens"`
	TotalTokens      uint64 `json:"total_tokens"`

	// Process lifetime.
	CumulativePromptTokens     uint64 `json:"cumulative_prompt_tokens"`
	CumulativeCompletionTokens uint64 `json:"cumulative_completion_tokens"`
	CumulativeTotalTokens      uint64 `json:"cumulative_total_tokens"`

	Session SessionStats `json:"session"`
}

// GetStats returns a snapshot of the current totals.
func (h *Handler) GetStats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		Model:                      h.modelName,
		TotalCost:                  h.totalCost,
		SuccessfulRequests:         h.successfulRequests,
		PromptTokens:               h.promptTokens,
		CompletionTokens:           h.completionTokens,
		TotalTokens:                h.totalTokens,
		CumulativePromptTokens:     h.cumPromptTokens,
		CumulativeCompletionTokens: h.cumCompletionTokens,
		CumulativeTotalTokens:      h.cumTotalTokens,
		Session: SessionStats{
			SessionID:    h.session.id,
			Cost:         h.session.cost,
			Tokens:       h.session.tokens,
			InputTokens:  h.session.inputTokens,
			OutputTokens: h.session.outputTokens,
			Duration:     h.session.duration,
		},
	}
}

// ResetSessionTotals zeroes the per-session totals while keeping the
// session id.
func (h *Handler) ResetSessionTotals() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.session.id
	h.session = sessionTotals{id: id}
}

// ResetAllTotals zeroes every counter, forgets the remembered limit
// decision, and re-resolves pricing for the current model name.
func (h *Handler) ResetAllTotals() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.promptTokens = 0
	h.completionTokens = 0
	h.totalTokens = 0
	h.cumPromptTokens = 0
	h.cumCompletionTokens = 0
	h.cumTotalTokens = 0
	h.totalCost = decimal.Decimal{}
	h.successfulRequests = 0
	// The session id is dropped too; the next persist re-resolves it from
	// the session source.
	h.session = sessionTotals{}
	h.decision = nil

	h.resolveRates()
}

// SetModel changes the model used for future rate resolutions. Rates take
// effect on the next ResetAllTotals.
func (h *Handler) SetModel(name, provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modelName = name
	h.provider = provider
}
