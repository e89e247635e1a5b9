// Package shopsearch queries the external shopping-search API. Every
// failure mode here (timeout, non-success status, malformed body) is an
// error the aggregator downgrades to an empty contribution.
package shopsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://serpapi.com/search.json"

// Client is a thin JSON client for the shopping-search provider.
type Client struct {
	BaseURL string
	APIKey  string
	// Locale parameters forwarded on every call.
	HL string
	GL string

	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HL:         "fr",
		GL:         "fr",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search runs a text shopping query and returns the raw result rows.
func (c *Client) Search(ctx context.Context, query string) ([]ShoppingResult, error) {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)

	var payload struct {
		ShoppingResults []ShoppingResult `json:"shopping_results"`
	}
	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}
	return payload.ShoppingResults, nil
}

// ProductDetail looks up seller offers and media for a provider product id.
func (c *Client) ProductDetail(ctx context.Context, productID string) (*ProductDetail, error) {
	params := url.Values{}
	params.Set("engine", "google_product")
	params.Set("product_id", productID)
	params.Set("offers", "1")

	var payload ProductDetail
	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}
	if payload.ProductResults == nil {
		return nil, fmt.Errorf("shopsearch: product %s: empty product_results", productID)
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("hl", c.HL)
	params.Set("gl", c.GL)
	params.Set("api_key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shopsearch: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("shopsearch: decode: %w", err)
	}
	return nil
}

// DecodeRedirect unwraps the provider's interstitial redirect links
// (host google.com, path /url, target in the q parameter).
func DecodeRedirect(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.HasSuffix(u.Hostname(), "google.com") && u.Path == "/url" {
		if q := u.Query().Get("q"); q != "" {
			return q
		}
	}
	return raw
}

// IsHTTPURL reports whether the value is an absolute http(s) URL; deal
// links that fail this check are dropped rather than rendered.
func IsHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
