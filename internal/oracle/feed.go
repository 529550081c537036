// Package oracle wraps the external price feed: the latest exchange rate for
// purchase quoting plus a persisted observation history.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mtlprog/sale/internal/domain"
)

// FeedClient fetches the current exchange rate from the price feed API.
type FeedClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFeedClient creates a new price feed client.
func NewFeedClient(baseURL string) *FeedClient {
	return &FeedClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rateResponse struct {
	Rate int64 `json:"rate"`
}

// FetchRate returns the most recent signed rate with its implied decimal
// scale. The value is returned as-is: sign and sanity checks belong to the
// consumer, not the adapter.
func (c *FeedClient) FetchRate(ctx context.Context) (domain.ExchangeRate, error) {
	url := c.baseURL + "/v1/rate"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating feed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading feed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed rateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("parsing feed response: %w", err)
	}
	return domain.ExchangeRate(parsed.Rate), nil
}
