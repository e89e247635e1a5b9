package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"wheyhunter/pkg/models"
)

//go:embed static_catalogue.json
var staticCatalogueJSON []byte

// StaticProvider serves the embedded fixture catalogue. It backs the
// comparison pipeline when neither the live catalogue service nor the
// vendor collectors are configured, and keeps demo installs working
// offline.
type StaticProvider struct {
	once     sync.Once
	products []Product
	history  map[int][]HistoryEntry
	loadErr  error
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

func (p *StaticProvider) load() {
	var payload struct {
		Products     []Product                 `json:"products"`
		PriceHistory map[string][]HistoryEntry `json:"price_history"`
	}
	if err := json.Unmarshal(staticCatalogueJSON, &payload); err != nil {
		p.loadErr = fmt.Errorf("catalog: fixture: %w", err)
		return
	}
	p.products = payload.Products
	p.history = make(map[int][]HistoryEntry, len(payload.PriceHistory))
	for key, entries := range payload.PriceHistory {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		p.history[id] = entries
	}
}

func (p *StaticProvider) ListProducts(ctx context.Context) ([]Product, error) {
	p.once.Do(p.load)
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	out := make([]Product, len(p.products))
	for i, product := range p.products {
		out[i] = cloneProduct(product)
	}
	return out, nil
}

func (p *StaticProvider) ProductWithOffers(ctx context.Context, id int) (*Product, error) {
	p.once.Do(p.load)
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	for _, product := range p.products {
		if product.ID == id {
			clone := cloneProduct(product)
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("catalog: product %d: %w", id, models.ErrProductNotFound)
}

func (p *StaticProvider) PriceHistory(ctx context.Context, id int, since time.Time) ([]HistoryEntry, error) {
	p.once.Do(p.load)
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	var out []HistoryEntry
	for _, entry := range p.history[id] {
		if !since.IsZero() && entry.RecordedAt.Before(since) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// cloneProduct deep-copies a product so callers can't mutate the fixture.
func cloneProduct(product Product) Product {
	clone := product
	clone.ProteinPerServingG = clonePtr(product.ProteinPerServingG)
	clone.ServingSizeG = clonePtr(product.ServingSizeG)
	clone.Offers = make([]Offer, len(product.Offers))
	for i, offer := range product.Offers {
		clone.Offers[i] = cloneOffer(offer)
	}
	return clone
}

func cloneOffer(offer Offer) Offer {
	clone := offer
	clone.Price = clonePtr(offer.Price)
	clone.InStock = clonePtr(offer.InStock)
	clone.ShippingCost = clonePtr(offer.ShippingCost)
	clone.Rating = clonePtr(offer.Rating)
	clone.Reviews = clonePtr(offer.Reviews)
	return clone
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
