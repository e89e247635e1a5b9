// Package similarity ranks catalogue products by how close they are to
// a base product, for "customers also looked at" style suggestions.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"wheyhunter/pkg/providers/catalog"
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases free text and keeps alphanumeric runs of three
// characters or more. Short connectives never influence scoring.
func Tokenize(value string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, token := range tokenRe.FindAllString(strings.ToLower(value), -1) {
		if len(token) >= 3 {
			out[token] = struct{}{}
		}
	}
	return out
}

// Score rates how similar two products are. Brand identity dominates,
// then name token overlap, then category, flavour and protein content.
// Every term reads both sides the same way, so the score is symmetric.
func Score(base, candidate catalog.Product) float64 {
	score := 0.0

	baseBrand := strings.ToLower(strings.TrimSpace(base.Brand))
	candBrand := strings.ToLower(strings.TrimSpace(candidate.Brand))
	if baseBrand != "" && candBrand != "" {
		switch {
		case baseBrand == candBrand:
			score += 3.0
		case strings.Contains(candBrand, baseBrand) || strings.Contains(baseBrand, candBrand):
			score += 1.5
		}
	}

	baseCategory := strings.ToLower(strings.TrimSpace(base.Category))
	candCategory := strings.ToLower(strings.TrimSpace(candidate.Category))
	if baseCategory != "" && baseCategory == candCategory {
		score += 1.5
	}

	baseTokens := Tokenize(base.Name)
	candTokens := Tokenize(candidate.Name)
	if len(baseTokens) > 0 && len(candTokens) > 0 {
		overlap := 0
		for token := range baseTokens {
			if _, ok := candTokens[token]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			denominator := len(baseTokens)
			if len(candTokens) > denominator {
				denominator = len(candTokens)
			}
			score += 2.0 * float64(overlap) / float64(denominator)
		}
	}

	baseFlavour := Tokenize(base.Flavour)
	candFlavour := Tokenize(candidate.Flavour)
	if len(baseFlavour) > 0 && len(candFlavour) > 0 {
		for token := range baseFlavour {
			if _, ok := candFlavour[token]; ok {
				score += 1.0
				break
			}
		}
	}

	if base.ProteinPerServingG != nil && candidate.ProteinPerServingG != nil &&
		math.Abs(*base.ProteinPerServingG-*candidate.ProteinPerServingG) <= 2 {
		score += 0.5
	}

	return score
}

// Rank returns up to limit candidates ordered by descending score, with
// ties broken by best offer rating descending, then cheapest offer total
// ascending (unknown totals last). The base product itself never
// appears. When nothing scores above zero the next unrelated products
// fill the list, so a product page always has suggestions to show.
func Rank(products []catalog.Product, base catalog.Product, limit int) []catalog.Product {
	if limit <= 0 {
		return nil
	}

	type scored struct {
		score   float64
		rating  *float64
		total   *float64
		product catalog.Product
	}

	var candidates []scored
	for _, candidate := range products {
		if candidate.ID == base.ID {
			continue
		}
		score := Score(base, candidate)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{
			score:   score,
			rating:  bestRating(candidate),
			total:   cheapestTotal(candidate),
			product: candidate,
		})
	}

	if len(candidates) == 0 {
		var fallback []catalog.Product
		for _, candidate := range products {
			if candidate.ID == base.ID {
				continue
			}
			fallback = append(fallback, candidate)
			if len(fallback) >= limit*2 {
				break
			}
		}
		if len(fallback) > limit {
			fallback = fallback[:limit]
		}
		return fallback
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if ra, rb := ratingOrZero(a.rating), ratingOrZero(b.rating); ra != rb {
			return ra > rb
		}
		if a.total == nil {
			return false
		}
		if b.total == nil {
			return true
		}
		return *a.total < *b.total
	})

	out := make([]catalog.Product, 0, limit)
	for _, candidate := range candidates {
		out = append(out, candidate.product)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// bestRating is the highest offer rating a product carries.
func bestRating(product catalog.Product) *float64 {
	var best *float64
	for _, offer := range product.Offers {
		if offer.Rating == nil {
			continue
		}
		if best == nil || *offer.Rating > *best {
			v := *offer.Rating
			best = &v
		}
	}
	return best
}

// cheapestTotal is the lowest price-plus-shipping across a product's
// offers.
func cheapestTotal(product catalog.Product) *float64 {
	var best *float64
	for _, offer := range product.Offers {
		if offer.Price == nil {
			continue
		}
		total := *offer.Price
		if offer.ShippingCost != nil {
			total += *offer.ShippingCost
		}
		if best == nil || total < *best {
			v := total
			best = &v
		}
	}
	return best
}

func ratingOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
