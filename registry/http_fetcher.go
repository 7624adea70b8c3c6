package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPFetcher reads the registry from an HTTP endpoint returning the JSON
// list of indexer configs.
type HTTPFetcher struct {
	http     *http.Client
	endpoint string
}

// NewHTTPFetcher creates a fetcher against the given endpoint.
func NewHTTPFetcher(endpoint string) *HTTPFetcher {
	return &HTTPFetcher{
		http:     &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
	}
}

// Fetch lists the registered indexer configs.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]IndexerConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry fetch: status %d", resp.StatusCode)
	}

	var configs []IndexerConfig
	if err := json.NewDecoder(resp.Body).Decode(&configs); err != nil {
		return nil, fmt.Errorf("registry fetch: malformed response: %w", err)
	}
	return configs, nil
}
