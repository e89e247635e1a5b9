// Package history records price observations over time and derives the
// trend statistics shown on product pages.
package history

import (
	"math"

	"wheyhunter/pkg/models"
	"wheyhunter/pkg/pricing"
)

// Trend labels. A move of more than five percent against the first
// recorded price counts as a real move; anything inside that band is
// stable.
const (
	TrendDecline = "decline"
	TrendRise    = "rise"
	TrendStable  = "stable"
)

// BuildStats derives summary statistics from points ordered oldest
// first. Empty input yields nil: no observations means no statistics,
// not zeroes.
func BuildStats(points []models.PricePoint, currency string) *models.PriceStats {
	if len(points) == 0 {
		return nil
	}

	prices := make([]float64, 0, len(points))
	for _, point := range points {
		if point.Price.Amount == nil {
			continue
		}
		prices = append(prices, *point.Price.Amount)
	}
	if len(prices) == 0 {
		return nil
	}

	current := prices[len(prices)-1]
	lowest := prices[0]
	highest := prices[0]
	sum := 0.0
	for _, p := range prices {
		if p < lowest {
			lowest = p
		}
		if p > highest {
			highest = p
		}
		sum += p
	}
	average := sum / float64(len(prices))

	first := prices[0]
	change := 0.0
	if first > 0 {
		change = (current - first) / first * 100
	}
	change = round2(change)

	trend := TrendStable
	switch {
	case change < -5:
		trend = TrendDecline
	case change > 5:
		trend = TrendRise
	}

	return &models.PriceStats{
		Current:         pricing.NewPrice(round2p(current), currency),
		Lowest:          pricing.NewPrice(round2p(lowest), currency),
		Highest:         pricing.NewPrice(round2p(highest), currency),
		Average:         pricing.NewPrice(round2p(average), currency),
		ChangePercent:   &change,
		Trend:           trend,
		DataPoints:      len(prices),
		IsHistoricalLow: math.Abs(current-lowest) < 1e-6,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round2p(v float64) *float64 {
	r := round2(v)
	return &r
}
