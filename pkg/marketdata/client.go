package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches quotes from a remote quote feed over HTTP. The feed is
// external and may be slow or unavailable, so every request carries the
// caller's context plus a hard client timeout.
//
// Expected endpoint: GET {base}/quotes/{symbol} returning a Quote JSON
// document; 404 means the symbol is unknown.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a quote client for the feed at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// GetQuote fetches the latest quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	addr := fmt.Sprintf("%s/quotes/%s", c.base, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote feed: GET %s: %s", addr, resp.Status)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("quote feed: decode %s: %w", symbol, err)
	}
	if quote.Symbol == "" {
		quote.Symbol = symbol
	}
	return &quote, nil
}

var _ Provider = (*Client)(nil)
