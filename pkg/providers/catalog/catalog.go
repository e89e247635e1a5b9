// Package catalog abstracts the internal product catalogue behind one
// Provider interface with swappable implementations: the live
// scraper-service API, direct vendor collectors, and an embedded static
// fixture used when nothing else is reachable.
package catalog

import (
	"context"
	"time"
)

// Product is a catalogue entry, optionally carrying its known offers.
type Product struct {
	ID                 int      `json:"id"`
	Name               string   `json:"name"`
	Brand              string   `json:"brand,omitempty"`
	Flavour            string   `json:"flavour,omitempty"`
	Category           string   `json:"category,omitempty"`
	Image              string   `json:"image,omitempty"`
	ProteinPerServingG *float64 `json:"protein_per_serving_g,omitempty"`
	ServingSizeG       *float64 `json:"serving_size_g,omitempty"`
	Offers             []Offer  `json:"offers,omitempty"`
}

// Offer is one structured vendor offer as stored by the catalogue. The
// catalogue is trusted: numeric fields arrive as numbers, not text.
type Offer struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Price        *float64 `json:"price"`
	Currency     string   `json:"currency,omitempty"`
	URL          string   `json:"url,omitempty"`
	InStock      *bool    `json:"in_stock"`
	StockStatus  string   `json:"stock_status,omitempty"`
	ShippingCost *float64 `json:"shipping_cost"`
	ShippingText string   `json:"shipping_text,omitempty"`
	Rating       *float64 `json:"rating"`
	Reviews      *int     `json:"reviews"`
	Image        string   `json:"image,omitempty"`
}

// HistoryEntry is one recorded price observation from the catalogue's
// history endpoint.
type HistoryEntry struct {
	RecordedAt time.Time `json:"recorded_at"`
	Price      *float64  `json:"price"`
	Currency   string    `json:"currency,omitempty"`
	Source     string    `json:"source,omitempty"`
}

// Provider is the single interface every catalogue implementation
// satisfies. A provider returning an error contributes nothing; the
// aggregator carries on with the other sources.
type Provider interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ProductWithOffers(ctx context.Context, id int) (*Product, error)
	PriceHistory(ctx context.Context, id int, since time.Time) ([]HistoryEntry, error)
}
