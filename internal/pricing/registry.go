package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

//go:embed data/defaults.json
var defaultPrices []byte

// Registry is a thread-safe model price catalog keyed by model name or
// "provider/model". It ships with embedded defaults and can be refreshed
// from a file or a remote price feed.
type Registry struct {
	mu     sync.RWMutex
	prices map[string]ModelInfo
}

// NewRegistry returns a registry loaded with the embedded default prices.
func NewRegistry() *Registry {
	r := &Registry{prices: make(map[string]ModelInfo)}
	if err := r.loadBytes(defaultPrices); err != nil {
		// Embedded data is validated at build time; a failure here is a bug.
		panic(fmt.Sprintf("pricing: loading embedded defaults: %v", err))
	}
	return r
}

// LoadFile merges prices from a JSON file on top of the current catalog.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading price file: %w", err)
	}
	return r.loadBytes(data)
}

// loadBytes merges a price map into the catalog. Entries that fail to
// decode individually are skipped so one malformed record in a large feed
// does not discard the rest.
func (r *Registry) loadBytes(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing prices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, msg := range raw {
		var info ModelInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			continue
		}
		r.prices[key] = info
	}
	return nil
}

// ModelInfo implements Lookup. "provider/model" keys take precedence over
// bare model keys.
func (r *Registry) ModelInfo(model, provider string) (ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if provider != "" {
		if info, ok := r.prices[provider+"/"+model]; ok {
			return info, true
		}
	}
	if info, ok := r.prices[model]; ok {
		return info, true
	}
	return ModelInfo{}, false
}

// Len returns the number of cataloged models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prices)
}
