package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultFeedURL is the community-maintained model price feed.
	DefaultFeedURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

	feedTimeout     = 15 * time.Second
	feedMaxBodySize = 8 << 20 // 8 MB
)

// Fetcher downloads a model price feed and merges it into a Registry.
type Fetcher struct {
	url  string
	http *http.Client
}

// NewFetcher creates a fetcher for the given feed URL. An empty URL uses
// the default community feed.
func NewFetcher(url string) *Fetcher {
	if url == "" {
		url = DefaultFeedURL
	}
	return &Fetcher{
		url:  url,
		http: &http.Client{},
	}
}

// Refresh downloads the feed and merges its prices into r.
// The registry keeps its previous contents when the fetch fails.
func (f *Fetcher) Refresh(ctx context.Context, r *Registry) error {
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return fmt.Errorf("pricing: creating feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("pricing: fetching feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pricing: feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, feedMaxBodySize))
	if err != nil {
		return fmt.Errorf("pricing: reading feed: %w", err)
	}

	return r.loadBytes(body)
}
