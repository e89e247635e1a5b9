// Package aggregator merges catalogue offers and live shopping-search
// results into one ranked deal list, and builds the product summaries
// served to the frontend.
package aggregator

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"wheyhunter/pkg/cache"
	"wheyhunter/pkg/deals"
	"wheyhunter/pkg/images"
	"wheyhunter/pkg/logger"
	"wheyhunter/pkg/models"
	"wheyhunter/pkg/observability"
	"wheyhunter/pkg/pricing"
	"wheyhunter/pkg/providers/catalog"
	"wheyhunter/pkg/providers/shopsearch"
	"wheyhunter/pkg/similarity"
)

// PreferredDomains are merchants whose direct links win when picking the
// representative seller for a search result.
var PreferredDomains = []string{
	"myprotein.fr",
	"prozis.com",
	"decathlon.fr",
	"nutrimuscle.com",
}

// SearchClient is the slice of the shopping-search API the aggregator
// uses.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]shopsearch.ShoppingResult, error)
	ProductDetail(ctx context.Context, productID string) (*shopsearch.ProductDetail, error)
}

// Service wires the providers, the identity cache and the image
// resolver into the comparison pipeline.
type Service struct {
	Catalog catalog.Provider
	Search  SearchClient
	Cache   cache.Store
	Images  images.Resolver

	// ProviderTimeout bounds each provider pass. A provider that blows
	// the budget contributes nothing.
	ProviderTimeout time.Duration

	// EnrichSearchResults controls whether each search row with a
	// product id gets a detail lookup to pick its best seller.
	EnrichSearchResults bool
}

func New(cat catalog.Provider, search SearchClient, store cache.Store, resolver images.Resolver) *Service {
	return &Service{
		Catalog:         cat,
		Search:          search,
		Cache:           store,
		Images:          resolver,
		ProviderTimeout: 20 * time.Second,
	}
}

// Filters narrow a comparison to a brand or category, matched against
// deal titles.
type Filters struct {
	Brand    string
	Category string
}

func (f Filters) matches(title string) bool {
	lowered := strings.ToLower(title)
	if f.Brand != "" && !strings.Contains(lowered, strings.ToLower(f.Brand)) {
		return false
	}
	if f.Category != "" && !strings.Contains(lowered, strings.ToLower(f.Category)) {
		return false
	}
	return true
}

func (f Filters) asMap() map[string]string {
	if f.Brand == "" && f.Category == "" {
		return nil
	}
	out := make(map[string]string, 2)
	if f.Brand != "" {
		out["marque"] = f.Brand
	}
	if f.Category != "" {
		out["categorie"] = f.Category
	}
	return out
}

// Compare aggregates both providers for a free-text query. Provider
// failures degrade to an empty contribution; the merged list is sorted
// by total, truncated, and only then gets its best deal marked.
func (s *Service) Compare(ctx context.Context, query string, filters Filters, limit int) []models.Deal {
	if limit <= 0 {
		limit = 10
	}

	var (
		wg           sync.WaitGroup
		catalogDeals []models.Deal
		searchDeals  []models.Deal
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		catalogDeals = s.catalogDeals(ctx, query, limit)
	}()
	go func() {
		defer wg.Done()
		searchDeals = s.searchDeals(ctx, query, filters, limit)
	}()
	wg.Wait()

	// Catalogue deals come first so ties resolve toward the
	// authoritative provider.
	combined := append(catalogDeals, searchDeals...)
	pricing.SortByTotal(combined)
	if len(combined) > limit {
		combined = combined[:limit]
	}
	pricing.MarkBestPrice(combined)
	return combined
}

// OffersForProduct aggregates every source for one catalogue product.
// Unknown products surface ErrProductNotFound.
func (s *Service) OffersForProduct(ctx context.Context, id int, limit int) (*catalog.Product, []models.Deal, error) {
	if limit <= 0 {
		limit = 10
	}

	observability.ProviderRequests.WithLabelValues("catalog").Inc()
	product, err := s.Catalog.ProductWithOffers(ctx, id)
	if err != nil {
		observability.ProviderFailures.WithLabelValues("catalog").Inc()
		return nil, nil, err
	}

	combined := offersToDeals(*product)
	combined = append(combined, s.searchDeals(ctx, product.Name, Filters{Brand: product.Brand}, limit)...)

	pricing.SortByTotal(combined)
	if len(combined) > limit {
		combined = combined[:limit]
	}
	pricing.MarkBestPrice(combined)

	if s.Cache != nil {
		s.Cache.Put(fmt.Sprint(product.ID), cache.Update{
			Summary: summaryPtr(s.Summarize(*product, combined)),
			Offers:  combined,
			Query:   product.Name,
		})
	}
	return product, combined, nil
}

// DetailByID resolves a search-provider product id into its seller
// deals. When the live lookup fails, cached state for any alias of the
// id serves as fallback; only then is the id reported unknown.
func (s *Service) DetailByID(ctx context.Context, productID string, limit int) ([]models.Deal, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, models.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 10
	}

	var sellerDeals []models.Deal
	if s.Search != nil {
		callCtx, cancel := s.providerContext(ctx)
		observability.ProviderRequests.WithLabelValues("search").Inc()
		detail, err := s.Search.ProductDetail(callCtx, productID)
		cancel()
		if err != nil {
			observability.ProviderFailures.WithLabelValues("search").Inc()
			logger.Dedup("aggregator: product detail %s: %v", productID, err)
		} else {
			if detail.SellersResults != nil {
				for index, seller := range detail.SellersResults.OnlineSellers {
					sellerDeals = append(sellerDeals, deals.FromSeller(detail.ProductResults, seller, index, s.Images))
				}
			}
			if s.Cache != nil {
				s.Cache.Put(productID, cache.Update{
					Raw:    detail,
					RawTag: "search",
					Offers: sellerDeals,
				})
			}
		}
	}

	if len(sellerDeals) == 0 {
		sellerDeals = s.cachedOffers(productID)
	}
	if len(sellerDeals) == 0 {
		return nil, fmt.Errorf("aggregator: product %s: %w", productID, models.ErrProductNotFound)
	}

	pricing.SortByTotal(sellerDeals)
	if len(sellerDeals) > limit {
		sellerDeals = sellerDeals[:limit]
	}
	pricing.MarkBestPrice(sellerDeals)
	return sellerDeals, nil
}

// ListSummaries builds the catalogue overview: every product condensed
// to its summary card with catalogue offers ranked and the best one
// marked.
func (s *Service) ListSummaries(ctx context.Context) ([]models.ProductSummary, error) {
	observability.ProviderRequests.WithLabelValues("catalog").Inc()
	products, err := s.Catalog.ListProducts(ctx)
	if err != nil {
		observability.ProviderFailures.WithLabelValues("catalog").Inc()
		return nil, err
	}

	summaries := make([]models.ProductSummary, 0, len(products))
	for _, product := range products {
		detailed := product
		if len(detailed.Offers) == 0 {
			if withOffers, err := s.Catalog.ProductWithOffers(ctx, product.ID); err == nil {
				detailed = *withOffers
			}
		}
		offerDeals := offersToDeals(detailed)
		pricing.SortByTotal(offerDeals)
		pricing.MarkBestPrice(offerDeals)
		summaries = append(summaries, s.Summarize(detailed, offerDeals))
	}
	return summaries, nil
}

// Similar returns ranked product summaries for a base product. The
// fallback inside the ranker guarantees a non-empty result whenever any
// other product exists.
func (s *Service) Similar(ctx context.Context, id int, limit int) ([]models.ProductSummary, error) {
	if limit <= 0 {
		limit = 4
	}

	observability.ProviderRequests.WithLabelValues("catalog").Inc()
	base, err := s.Catalog.ProductWithOffers(ctx, id)
	if err != nil {
		observability.ProviderFailures.WithLabelValues("catalog").Inc()
		return nil, err
	}

	products, err := s.Catalog.ListProducts(ctx)
	if err != nil {
		observability.ProviderFailures.WithLabelValues("catalog").Inc()
		return nil, err
	}

	ranked := similarity.Rank(products, *base, limit)
	summaries := make([]models.ProductSummary, 0, len(ranked))
	for _, candidate := range ranked {
		detailed := candidate
		if len(detailed.Offers) == 0 {
			if withOffers, err := s.Catalog.ProductWithOffers(ctx, candidate.ID); err == nil {
				detailed = *withOffers
			}
		}
		offerDeals := offersToDeals(detailed)
		pricing.SortByTotal(offerDeals)
		pricing.MarkBestPrice(offerDeals)
		summaries = append(summaries, s.Summarize(detailed, offerDeals))
	}
	return summaries, nil
}

// Summarize condenses a product and its aggregated deals into the
// summary card shape. The image is always present, synthesized when no
// real candidate survives.
func (s *Service) Summarize(product catalog.Product, aggregated []models.Deal) models.ProductSummary {
	var best *models.Deal
	for i := range aggregated {
		if aggregated[i].IsBestPrice {
			best = &aggregated[i]
			break
		}
	}
	if best == nil && len(aggregated) > 0 {
		best = &aggregated[0]
	}

	candidates := []string{product.Image}
	for _, offer := range product.Offers {
		candidates = append(candidates, offer.Image)
	}
	resolved := s.Images.Resolve(candidates, product.Name, product.Brand)

	summary := models.ProductSummary{
		ID:                 fmt.Sprint(product.ID),
		ProductID:          fmt.Sprint(product.ID),
		Name:               product.Name,
		Brand:              product.Brand,
		Flavour:            product.Flavour,
		Category:           product.Category,
		Image:              resolved,
		ImageURL:           resolved,
		ProteinPerServingG: product.ProteinPerServingG,
		ServingSizeG:       product.ServingSizeG,
		OffersCount:        len(aggregated),
	}
	if picked := s.Images.Pick(candidates); picked != "" {
		summary.ImageURL = picked
	}

	if best != nil {
		bestClone := best.Clone()
		summary.BestDeal = bestClone
		summary.BestVendor = bestClone.Vendor
		summary.InStock = bestClone.InStock
		summary.StockStatus = bestClone.StockStatus
		summary.Rating = bestClone.Rating
		summary.ReviewsCount = bestClone.ReviewsCount
		summary.PricePerKg = bestClone.PricePerKg
		summary.Link = bestClone.Link

		if total := pricing.ExtractTotal(bestClone); total != nil {
			price := pricing.NewPrice(total, bestClone.Price.Currency)
			summary.BestPrice = price
			summary.TotalPrice = price
			summary.ProteinPerEuro = proteinPerEuro(product, *total)
		}
	}
	return summary
}

// proteinPerEuro rates value for money: grams of protein in a kilogram
// of powder divided by the best total price.
func proteinPerEuro(product catalog.Product, total float64) *float64 {
	if product.ProteinPerServingG == nil || *product.ProteinPerServingG <= 0 {
		return nil
	}
	if product.ServingSizeG == nil || *product.ServingSizeG <= 0 || total <= 0 {
		return nil
	}
	servings := 1000 / *product.ServingSizeG
	totalProtein := servings * *product.ProteinPerServingG
	v := math.Round(totalProtein/total*100) / 100
	return &v
}

// catalogDeals lists catalogue products matching the query and converts
// their offers. Failures degrade to an empty contribution.
func (s *Service) catalogDeals(ctx context.Context, query string, limit int) []models.Deal {
	if s.Catalog == nil {
		return nil
	}
	callCtx, cancel := s.providerContext(ctx)
	defer cancel()

	observability.ProviderRequests.WithLabelValues("catalog").Inc()
	products, err := s.Catalog.ListProducts(callCtx)
	if err != nil {
		observability.ProviderFailures.WithLabelValues("catalog").Inc()
		logger.Dedup("aggregator: catalog list: %v", err)
		return nil
	}

	matched := make([]catalog.Product, 0, len(products))
	for _, product := range products {
		if matchesQuery(product.Name, query) {
			matched = append(matched, product)
		}
	}
	if len(matched) == 0 {
		matched = products
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	var out []models.Deal
	for _, product := range matched {
		detailed := product
		if len(detailed.Offers) == 0 {
			withOffers, err := s.Catalog.ProductWithOffers(callCtx, product.ID)
			if err != nil {
				logger.Dedup("aggregator: catalog product %d: %v", product.ID, err)
				continue
			}
			detailed = *withOffers
		}
		out = append(out, offersToDeals(detailed)...)
	}
	return out
}

// searchDeals queries the shopping-search provider and normalizes the
// rows. Each row lands in the identity cache keyed by its product id so
// later detail requests can resolve aliases. Failures degrade to an
// empty contribution.
func (s *Service) searchDeals(ctx context.Context, query string, filters Filters, limit int) []models.Deal {
	if s.Search == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	callCtx, cancel := s.providerContext(ctx)
	defer cancel()

	observability.ProviderRequests.WithLabelValues("search").Inc()
	results, err := s.Search.Search(callCtx, query)
	if err != nil {
		observability.ProviderFailures.WithLabelValues("search").Inc()
		logger.Dedup("aggregator: search %q: %v", query, err)
		return nil
	}

	maxResults := limit * 2
	if maxResults < limit {
		maxResults = limit
	}

	var out []models.Deal
	for index, item := range results {
		if !filters.matches(item.Title) {
			continue
		}

		deal := deals.FromShoppingResult(item, index, query, s.Images)

		var raw *shopsearch.ProductDetail
		if s.EnrichSearchResults && item.ProductID.String() != "" {
			raw = s.enrich(callCtx, &deal, item.ProductID.String())
		}

		if s.Cache != nil {
			key := item.ProductID.String()
			if key == "" {
				key = deal.ID
			}
			update := cache.Update{
				Deal:    &deal,
				Offers:  []models.Deal{deal},
				Query:   query,
				Filters: filters.asMap(),
			}
			if raw != nil {
				update.Raw = raw
				update.RawTag = "search"
			}
			s.Cache.Put(key, update)
		}

		out = append(out, deal)
		if len(out) >= maxResults {
			break
		}
	}
	return out
}

// enrich fetches the detail payload for a search row and folds its best
// seller into the deal: direct link, final price, vendor, rating.
func (s *Service) enrich(ctx context.Context, deal *models.Deal, productID string) *shopsearch.ProductDetail {
	observability.ProviderRequests.WithLabelValues("search").Inc()
	detail, err := s.Search.ProductDetail(ctx, productID)
	if err != nil {
		observability.ProviderFailures.WithLabelValues("search").Inc()
		logger.Dedup("aggregator: enrich %s: %v", productID, err)
		return nil
	}

	if detail.SellersResults != nil {
		if best := pickBestSeller(detail.SellersResults.OnlineSellers); best != nil {
			applySeller(deal, *best)
		}
	}
	if detail.ProductResults != nil {
		if image := s.Images.Pick(detail.ProductResults.ImageCandidates()); image != "" && deal.Image == "" {
			deal.Image = image
		}
	}
	return detail
}

// applySeller overlays the chosen seller's concrete terms on a deal
// built from the coarser search row.
func applySeller(deal *models.Deal, seller shopsearch.Seller) {
	if link := shopsearch.DecodeRedirect(seller.Link); shopsearch.IsHTTPURL(link) {
		deal.Link = link
	}
	priceText := pricing.SanitizePriceText(seller.TotalPrice)
	if priceText == "" {
		priceText = pricing.SanitizePriceText(seller.BasePrice)
	}
	if amount := pricing.ParseAmount(priceText); amount != nil {
		deal.Price = models.Price{Amount: amount, Currency: "EUR", Formatted: priceText}
		total := *amount
		if seller.ShippingCost.Value != nil {
			deal.ShippingCost = seller.ShippingCost.Value
			total += *seller.ShippingCost.Value
		}
		deal.TotalPrice = pricing.NewPrice(&total, "EUR")
	}
	if seller.Name != "" {
		deal.Vendor = seller.Name
	}
	if seller.Shipping != "" {
		deal.ShippingText = seller.Shipping
	}
	if seller.Availability != "" {
		deal.StockStatus = seller.Availability
		deal.InStock = deals.DetectStock(seller.Availability)
	}
	if seller.Rating.Value != nil {
		deal.Rating = seller.Rating.Value
	}
	if seller.Reviews.Value != nil {
		deal.ReviewsCount = seller.Reviews.Value
	}
}

// pickBestSeller prefers a seller whose direct link lands on a known
// merchant domain, else the one with the lowest total.
func pickBestSeller(sellers []shopsearch.Seller) *shopsearch.Seller {
	if len(sellers) == 0 {
		return nil
	}

	for i := range sellers {
		link := shopsearch.DecodeRedirect(sellers[i].Link)
		host := hostOf(link)
		for _, domain := range PreferredDomains {
			if strings.Contains(host, domain) {
				return &sellers[i]
			}
		}
	}

	bestIdx := 0
	bestTotal := sellerTotal(sellers[0])
	for i := 1; i < len(sellers); i++ {
		total := sellerTotal(sellers[i])
		if total < bestTotal {
			bestTotal = total
			bestIdx = i
		}
	}
	return &sellers[bestIdx]
}

func sellerTotal(seller shopsearch.Seller) float64 {
	for _, raw := range []string{seller.TotalPrice, seller.BasePrice, seller.Price} {
		if amount := pricing.ParseAmount(raw); amount != nil {
			return *amount
		}
	}
	return math.MaxFloat64
}

// cachedOffers resolves an identifier through the cache, counting the
// outcome, and returns any offers stored for it.
func (s *Service) cachedOffers(id string) []models.Deal {
	if s.Cache == nil {
		return nil
	}
	entry, ok := s.Cache.Get(id)
	if !ok {
		observability.CacheMisses.Inc()
		return nil
	}
	observability.CacheHits.Inc()

	var out []models.Deal
	seen := make(map[string]bool)
	if entry.Deal != nil {
		out = append(out, *entry.Deal)
		seen[entry.Deal.ID] = true
	}
	for _, offer := range entry.Offers {
		if offer.ID != "" && seen[offer.ID] {
			continue
		}
		seen[offer.ID] = true
		out = append(out, offer)
	}
	return out
}

func (s *Service) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.ProviderTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// offersToDeals converts a product's structured offers.
func offersToDeals(product catalog.Product) []models.Deal {
	out := make([]models.Deal, 0, len(product.Offers))
	for index, offer := range product.Offers {
		out = append(out, deals.FromCatalogOffer(product, offer, index))
	}
	return out
}

// matchesQuery requires every whitespace-separated query term to appear
// in the name. An empty query matches everything.
func matchesQuery(name, query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	normalized := strings.ToLower(name)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(normalized, term) {
			return false
		}
	}
	return true
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func summaryPtr(summary models.ProductSummary) *models.ProductSummary {
	return &summary
}
