// Package deals normalizes offers from every source into the one Deal
// shape the comparison pipeline works with.
package deals

import (
	"fmt"
	"strings"

	"wheyhunter/pkg/images"
	"wheyhunter/pkg/models"
	"wheyhunter/pkg/pricing"
	"wheyhunter/pkg/providers/catalog"
	"wheyhunter/pkg/providers/shopsearch"
)

// SearchSource labels every deal that came through the shopping-search
// provider, regardless of which merchant sells it.
const SearchSource = "Google Shopping"

var stockKeywords = []string{"stock", "available", "disponible"}

// DetectStock maps free availability text to the tri-state stock flag:
// nil when there is no text, true when a stock keyword appears, false
// when text exists but names no keyword.
func DetectStock(text string) *bool {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	v := false
	for _, keyword := range stockKeywords {
		if strings.Contains(lowered, keyword) {
			v = true
			break
		}
	}
	return &v
}

// FromCatalogOffer converts one structured catalogue offer into a deal.
func FromCatalogOffer(product catalog.Product, offer catalog.Offer, index int) models.Deal {
	title := product.Name
	if title == "" {
		title = "Produit"
	}
	if product.Brand != "" {
		title = product.Brand + " - " + title
	}

	currency := offer.Currency
	if currency == "" {
		currency = "EUR"
	}
	vendor := offer.Source
	if vendor == "" {
		vendor = "Marchand"
	}
	vendor = titleCase(vendor)

	inStock := offer.InStock
	if inStock == nil && offer.StockStatus != "" {
		inStock = DetectStock(offer.StockStatus)
	}

	offerID := offer.ID
	if offerID == "" {
		offerID = fmt.Sprint(index)
	}

	d := models.Deal{
		ID:           fmt.Sprintf("catalog-%d-%s", product.ID, offerID),
		Title:        title,
		Vendor:       vendor,
		Price:        pricing.NewPrice(offer.Price, currency),
		ShippingCost: offer.ShippingCost,
		ShippingText: offer.ShippingText,
		InStock:      inStock,
		StockStatus:  offer.StockStatus,
		Link:         offer.URL,
		Image:        offer.Image,
		Rating:       offer.Rating,
		ReviewsCount: offer.Reviews,
		Source:       vendor + " (Catalog)",
		ProductID:    fmt.Sprint(product.ID),
		WeightKg:     pricing.ExtractWeightKg(product.Name),
	}
	finalize(&d)
	return d
}

// FromShoppingResult converts one raw shopping-search row into a deal.
// The query supplies a weight fallback when the title carries none.
func FromShoppingResult(item shopsearch.ShoppingResult, index int, query string, resolver images.Resolver) models.Deal {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Produit"
	}

	vendor := item.Source
	if vendor == "" {
		vendor = item.Merchant
	}
	if vendor == "" {
		vendor = "Vendeur"
	}

	productID := item.ProductID.String()
	idPart := productID
	if idPart == "" {
		idPart = "item"
	}

	priceText := pricing.SanitizePriceText(item.Price)
	amount := pricing.ParseAmount(priceText)
	currency := ""
	if amount != nil {
		currency = "EUR"
	}

	link := shopsearch.DecodeRedirect(item.ProductLink)
	if link == "" {
		link = shopsearch.DecodeRedirect(item.Link)
	}
	if !shopsearch.IsHTTPURL(link) {
		link = ""
	}

	candidates := []string{item.Thumbnail, item.Image}
	for _, photo := range item.ProductPhotos {
		candidates = append(candidates, photo.Candidates()...)
	}

	weight := pricing.ExtractWeightKg(title)
	if weight == nil {
		weight = pricing.ExtractWeightKg(query)
	}

	d := models.Deal{
		ID:     fmt.Sprintf("google-%s-%d", idPart, index),
		Title:  title,
		Vendor: vendor,
		Price: models.Price{
			Amount:    amount,
			Currency:  currency,
			Formatted: priceText,
		},
		ShippingText: item.Shipping,
		InStock:      DetectStock(item.Availability),
		StockStatus:  item.Availability,
		Link:         link,
		Image:        resolver.Pick(candidates),
		Rating:       item.Rating.Value,
		ReviewsCount: item.Reviews.Value,
		Source:       SearchSource,
		ProductID:    productID,
		WeightKg:     weight,
	}
	finalize(&d)
	return d
}

// FromSeller converts one vendor row of a product-detail lookup into a
// deal tied to the detailed product.
func FromSeller(product *shopsearch.ProductResults, seller shopsearch.Seller, index int, resolver images.Resolver) models.Deal {
	title := product.DisplayTitle()
	if title == "" {
		title = strings.TrimSpace(seller.Title)
	}
	if title == "" {
		title = "Produit"
	}

	vendor := seller.Name
	if vendor == "" {
		vendor = seller.Source
	}
	if vendor == "" {
		vendor = "Marchand"
	}

	priceText := pricing.SanitizePriceText(firstNonEmpty(seller.TotalPrice, seller.BasePrice, seller.Price))
	amount := pricing.ParseAmount(priceText)
	currency := ""
	if amount != nil {
		currency = "EUR"
	}

	link := shopsearch.DecodeRedirect(seller.ProductLink)
	if link == "" {
		link = shopsearch.DecodeRedirect(seller.Link)
	}
	if !shopsearch.IsHTTPURL(link) {
		link = ""
	}

	weight := pricing.ExtractWeightKg(title)
	if weight == nil {
		weight = pricing.ExtractWeightKg(seller.Title)
	}

	var productID string
	if product != nil {
		productID = product.ProductID.String()
	}
	idPart := productID
	if idPart == "" {
		idPart = "item"
	}

	d := models.Deal{
		ID:     fmt.Sprintf("google-product-%s-%d", idPart, index),
		Title:  title,
		Vendor: vendor,
		Price: models.Price{
			Amount:    amount,
			Currency:  currency,
			Formatted: priceText,
		},
		ShippingCost: seller.ShippingCost.Value,
		ShippingText: seller.Shipping,
		InStock:      DetectStock(seller.Availability),
		StockStatus:  seller.Availability,
		Link:         link,
		Image:        resolver.Pick([]string{seller.Thumbnail, seller.Image, seller.ImageLink}),
		Rating:       seller.Rating.Value,
		ReviewsCount: seller.Reviews.Value,
		Source:       SearchSource,
		ProductID:    productID,
		WeightKg:     weight,
	}
	finalize(&d)
	return d
}

// finalize derives the fields every deal shares: the comparable total,
// a shipping label when only the cost is known, per-kilogram price off
// that total, and an image stripped of known placeholders.
func finalize(d *models.Deal) {
	if d.Price.Amount != nil {
		total := *d.Price.Amount
		if d.ShippingCost != nil {
			total += *d.ShippingCost
		}
		d.TotalPrice = pricing.NewPrice(&total, d.Price.Currency)
	}

	if d.ShippingText == "" && d.ShippingCost != nil {
		d.ShippingText = pricing.FormatPrice(d.ShippingCost, d.Price.Currency)
	}

	var resolver images.Resolver
	normalized := resolver.Normalize(d.Image)
	if normalized != "" && resolver.IsPlaceholder(normalized) {
		normalized = ""
	}
	d.Image = normalized

	if d.PricePerKg == nil {
		d.PricePerKg = pricing.PerKg(pricing.ExtractTotal(d), d.WeightKg)
	}

	d.BestPrice = false
	d.IsBestPrice = false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// titleCase uppercases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		first := strings.ToUpper(string(runes[0]))
		rest := strings.ToLower(string(runes[1:]))
		words[i] = first + rest
	}
	return strings.Join(words, " ")
}
