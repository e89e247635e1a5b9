package pricing

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"wheyhunter/pkg/models"
)

var (
	amountRe     = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	digitsRe     = regexp.MustCompile(`\d+`)
	multiPackRe  = regexp.MustCompile(`(\d+)\s*[x×]\s*(\d+(?:[.,]\d+)?)\s*(kg|g)`)
	singleUnitRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(kg|g)\b`)
)

// SanitizePriceText cleans locale-formatted price strings such as
// "19,90 €" or "19.90 EUR" into a uniform "19,90 €" form.
func SanitizePriceText(s string) string {
	if s == "" {
		return ""
	}
	r := strings.NewReplacer(
		" ", " ",
		"EUR", "€",
		"Euro", "€",
	)
	return strings.TrimSpace(r.Replace(s))
}

// ParseAmount extracts the first numeric token from a free-text price.
// Unparsable input yields nil, never an error.
func ParseAmount(s string) *float64 {
	cleaned := SanitizePriceText(s)
	if cleaned == "" {
		return nil
	}
	cleaned = strings.ReplaceAll(cleaned, "€", "")
	cleaned = strings.ReplaceAll(strings.TrimSpace(cleaned), ",", ".")
	m := amountRe.FindString(cleaned)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseFloat parses a plain numeric string, tolerating a decimal comma.
func ParseFloat(s string) *float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseInt extracts the first run of digits from free text.
func ParseInt(s string) *int {
	m := digitsRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}

// FormatPrice renders an amount for display. EUR keeps the trailing glyph
// convention used across the frontend.
func FormatPrice(amount *float64, currency string) string {
	if amount == nil {
		return ""
	}
	cur := strings.ToUpper(currency)
	if cur == "" || cur == "EUR" {
		return fmt.Sprintf("%.2f €", *amount)
	}
	return fmt.Sprintf("%.2f %s", *amount, cur)
}

// NewPrice builds a Price with its formatted text derived from the amount.
func NewPrice(amount *float64, currency string) models.Price {
	return models.Price{
		Amount:    amount,
		Currency:  currency,
		Formatted: FormatPrice(amount, currency),
	}
}

// ExtractWeightKg parses a product weight out of free text. Multi-pack
// notations ("2 x 500 g") are summed; grams normalize to kilograms.
// No match yields nil, never zero.
func ExtractWeightKg(text string) *float64 {
	t := strings.ToLower(strings.ReplaceAll(text, " ", " "))

	if packs := multiPackRe.FindAllStringSubmatch(t, -1); len(packs) > 0 {
		total := 0.0
		for _, m := range packs {
			count, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			w, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
			if err != nil {
				continue
			}
			if m[3] == "g" {
				w /= 1000.0
			}
			total += float64(count) * w
		}
		if total > 0 {
			return &total
		}
		return nil
	}

	if m := singleUnitRe.FindStringSubmatch(t); m != nil {
		w, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return nil
		}
		if m[2] == "g" {
			w /= 1000.0
		}
		return &w
	}
	return nil
}

// PerKg derives price-per-kilogram, only when the weight is known and
// nonzero.
func PerKg(total, weightKg *float64) *float64 {
	if total == nil || weightKg == nil || *weightKg == 0 {
		return nil
	}
	v := round2(*total / *weightKg)
	return &v
}

// ExtractTotal returns the comparable total for a deal: the precomputed
// totalPrice when present, otherwise price plus shipping when shipping is
// known, otherwise price alone. Nil when the price itself is unknown.
func ExtractTotal(d *models.Deal) *float64 {
	if d.TotalPrice.Amount != nil {
		v := *d.TotalPrice.Amount
		return &v
	}
	if d.Price.Amount == nil {
		return nil
	}
	total := *d.Price.Amount
	if d.ShippingCost != nil {
		total += *d.ShippingCost
	}
	return &total
}

// MarkBestPrice resets every deal's best flags and then flags the single
// cheapest deal by extracted total. Ties keep the first occurrence in the
// current list order. Deals with unknown totals never win; when every
// total is unknown, no deal is flagged.
//
// The caller truncates before marking: "best" is always relative to the
// visible window, not the full candidate set.
func MarkBestPrice(deals []models.Deal) {
	for i := range deals {
		deals[i].BestPrice = false
		deals[i].IsBestPrice = false
	}

	bestIdx := -1
	var best float64
	for i := range deals {
		total := ExtractTotal(&deals[i])
		if total == nil {
			continue
		}
		if bestIdx == -1 || *total < best {
			best = *total
			bestIdx = i
		}
	}

	if bestIdx >= 0 {
		deals[bestIdx].BestPrice = true
		deals[bestIdx].IsBestPrice = true
	}
}

// SortByTotal orders deals ascending by extracted total. Deals with an
// unknown total sort last. The sort is stable so merge order decides ties.
func SortByTotal(deals []models.Deal) {
	sort.SliceStable(deals, func(i, j int) bool {
		a := ExtractTotal(&deals[i])
		b := ExtractTotal(&deals[j])
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
