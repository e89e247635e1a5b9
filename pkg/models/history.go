package models

import "time"

// PricePoint is one recorded observation of a product's best total price.
type PricePoint struct {
	RecordedAt time.Time `json:"recordedAt"`
	Source     string    `json:"source,omitempty"`
	Price      Price     `json:"price"`
}

// PriceStats summarises a time-ordered series of price points.
type PriceStats struct {
	Current         Price    `json:"current"`
	Lowest          Price    `json:"lowest"`
	Highest         Price    `json:"highest"`
	Average         Price    `json:"average"`
	ChangePercent   *float64 `json:"priceChangePercent"`
	Trend           string   `json:"trend"`
	DataPoints      int      `json:"dataPoints"`
	IsHistoricalLow bool     `json:"isHistoricalLow"`
}
