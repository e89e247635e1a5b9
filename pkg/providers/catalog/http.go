package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"wheyhunter/pkg/models"
)

// HTTPProvider talks to the live catalogue service over its JSON API.
type HTTPProvider struct {
	BaseURL string

	httpClient *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := p.get(ctx, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (p *HTTPProvider) ProductWithOffers(ctx context.Context, id int) (*Product, error) {
	var product Product
	err := p.get(ctx, fmt.Sprintf("/products/%d", id), url.Values{"include_offers": {"1"}}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (p *HTTPProvider) PriceHistory(ctx context.Context, id int, since time.Time) ([]HistoryEntry, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}
	var entries []HistoryEntry
	if err := p.get(ctx, fmt.Sprintf("/products/%d/price-history", id), params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := p.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("catalog: %s: %w", path, models.ErrProductNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog: %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: %s: decode: %w", path, err)
	}
	return nil
}
