package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"wheyhunter/pkg/cache"
	"wheyhunter/pkg/images"
	"wheyhunter/pkg/models"
	"wheyhunter/pkg/providers/catalog"
	"wheyhunter/pkg/providers/shopsearch"
)

func f(v float64) *float64 { return &v }

type fakeSearch struct {
	results []shopsearch.ShoppingResult
	detail  *shopsearch.ProductDetail
	err     error
	block   bool
}

func (s *fakeSearch) Search(ctx context.Context, query string) ([]shopsearch.ShoppingResult, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *fakeSearch) ProductDetail(ctx context.Context, productID string) (*shopsearch.ProductDetail, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.detail == nil {
		return nil, errors.New("no detail")
	}
	return s.detail, nil
}

func testProduct() catalog.Product {
	return catalog.Product{
		ID:                 101,
		Name:               "Impact Whey Isolate 1 kg",
		Brand:              "MyProtein",
		Category:           "whey-protein",
		ProteinPerServingG: f(23),
		ServingSizeG:       f(25),
		Offers: []catalog.Offer{
			{
				ID:           "mp-impact-vanilla",
				Source:       "MyProtein",
				Price:        f(29.99),
				Currency:     "EUR",
				ShippingCost: f(4.99),
				StockStatus:  "En stock",
			},
			{
				ID:           "amazon-impact-vanilla",
				Source:       "Amazon",
				Price:        f(32.49),
				Currency:     "EUR",
				ShippingCost: f(0),
				StockStatus:  "En stock",
			},
		},
	}
}

type fakeCatalog struct {
	products []catalog.Product
	err      error
}

func (c *fakeCatalog) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.products, nil
}

func (c *fakeCatalog) ProductWithOffers(ctx context.Context, id int) (*catalog.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, product := range c.products {
		if product.ID == id {
			clone := product
			return &clone, nil
		}
	}
	return nil, models.ErrProductNotFound
}

func (c *fakeCatalog) PriceHistory(ctx context.Context, id int, since time.Time) ([]catalog.HistoryEntry, error) {
	return nil, nil
}

func newService(cat catalog.Provider, search SearchClient) *Service {
	s := New(cat, search, cache.NewMemoryStore(time.Minute, 100), images.Resolver{})
	s.ProviderTimeout = 100 * time.Millisecond
	return s
}

func TestCompareMarksFreeShippingOfferBest(t *testing.T) {
	// 29.99 + 4.99 shipping loses to 32.49 with free shipping.
	s := newService(&fakeCatalog{products: []catalog.Product{testProduct()}}, &fakeSearch{})

	deals := s.Compare(context.Background(), "impact whey", Filters{}, 10)
	if len(deals) != 2 {
		t.Fatalf("expected 2 deals, got %d", len(deals))
	}
	if deals[0].ID != "catalog-101-amazon-impact-vanilla" {
		t.Errorf("expected the free-shipping offer first, got %q", deals[0].ID)
	}
	if !deals[0].IsBestPrice || !deals[0].BestPrice {
		t.Error("cheapest total not marked best")
	}
	if deals[1].IsBestPrice {
		t.Error("more than one deal marked best")
	}
}

func TestCompareSurvivesSearchTimeout(t *testing.T) {
	s := newService(&fakeCatalog{products: []catalog.Product{testProduct()}}, &fakeSearch{block: true})

	start := time.Now()
	deals := s.Compare(context.Background(), "impact whey", Filters{}, 10)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("compare blocked for %s", elapsed)
	}
	if len(deals) != 2 {
		t.Fatalf("expected the 2 catalogue deals despite search timeout, got %d", len(deals))
	}
}

func TestCompareMergesSearchResults(t *testing.T) {
	search := &fakeSearch{results: []shopsearch.ShoppingResult{
		{
			Title:     "Impact Whey Isolate 1 kg",
			Price:     "27,90 €",
			Source:    "Decathlon",
			Link:      "https://www.decathlon.fr/whey",
			ProductID: shopsearch.FlexID("555"),
		},
	}}
	s := newService(&fakeCatalog{products: []catalog.Product{testProduct()}}, search)

	deals := s.Compare(context.Background(), "impact whey", Filters{}, 10)
	if len(deals) != 3 {
		t.Fatalf("expected 3 merged deals, got %d", len(deals))
	}
	// 27.90 has no shipping info, so it is the lowest total.
	if deals[0].ID != "google-555-0" {
		t.Errorf("expected search deal first, got %q", deals[0].ID)
	}

	// The search pass caches the row under its provider product id.
	if _, ok := s.Cache.Get("555"); !ok {
		t.Error("search deal not cached under its product id")
	}
}

func TestCompareAppliesFilters(t *testing.T) {
	search := &fakeSearch{results: []shopsearch.ShoppingResult{
		{Title: "Impact Whey Isolate", Price: "27,90 €", ProductID: shopsearch.FlexID("1")},
		{Title: "Créatine Monohydrate", Price: "19,90 €", ProductID: shopsearch.FlexID("2")},
	}}
	s := newService(&fakeCatalog{}, search)

	deals := s.Compare(context.Background(), "protein", Filters{Brand: "impact"}, 10)
	if len(deals) != 1 {
		t.Fatalf("expected 1 filtered deal, got %d", len(deals))
	}
	if deals[0].Title != "Impact Whey Isolate" {
		t.Errorf("unexpected deal %q", deals[0].Title)
	}
}

func TestCompareTruncatesBeforeMarking(t *testing.T) {
	search := &fakeSearch{results: []shopsearch.ShoppingResult{
		{Title: "Whey A", Price: "10,00 €", ProductID: shopsearch.FlexID("1")},
		{Title: "Whey B", Price: "20,00 €", ProductID: shopsearch.FlexID("2")},
		{Title: "Whey C", Price: "30,00 €", ProductID: shopsearch.FlexID("3")},
	}}
	s := newService(&fakeCatalog{}, search)

	deals := s.Compare(context.Background(), "whey", Filters{}, 2)
	if len(deals) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(deals))
	}
	if !deals[0].IsBestPrice {
		t.Error("cheapest visible deal not marked best")
	}
}

func TestOffersForProductNotFound(t *testing.T) {
	s := newService(&fakeCatalog{products: []catalog.Product{testProduct()}}, &fakeSearch{})

	_, _, err := s.OffersForProduct(context.Background(), 999, 10)
	if !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestDetailByIDFallsBackToCache(t *testing.T) {
	s := newService(&fakeCatalog{}, &fakeSearch{err: errors.New("quota exceeded")})

	s.Cache.Put("12345", cache.Update{
		Deal:   &models.Deal{ID: "google-12345-0", ProductID: "12345", Price: models.Price{Amount: f(25)}},
		Offers: []models.Deal{{ID: "google-12345-0", ProductID: "12345", Price: models.Price{Amount: f(25)}}},
	})

	deals, err := s.DetailByID(context.Background(), "12345", 10)
	if err != nil {
		t.Fatalf("DetailByID: %v", err)
	}
	if len(deals) != 1 || deals[0].ID != "google-12345-0" {
		t.Errorf("unexpected deals %+v", deals)
	}
	if !deals[0].IsBestPrice {
		t.Error("cached deal not marked best")
	}
}

func TestDetailByIDUnknown(t *testing.T) {
	s := newService(&fakeCatalog{}, &fakeSearch{err: errors.New("down")})

	_, err := s.DetailByID(context.Background(), "nope", 10)
	if !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	_, err = s.DetailByID(context.Background(), "  ", 10)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSummarizeComputesProteinPerEuro(t *testing.T) {
	product := testProduct()
	s := newService(&fakeCatalog{products: []catalog.Product{product}}, &fakeSearch{})

	_, deals, err := s.OffersForProduct(context.Background(), 101, 10)
	if err != nil {
		t.Fatalf("OffersForProduct: %v", err)
	}
	summary := s.Summarize(product, deals)

	if summary.BestDeal == nil {
		t.Fatal("expected a best deal")
	}
	if summary.BestVendor != "Amazon" {
		t.Errorf("BestVendor = %q", summary.BestVendor)
	}
	// 1000/25 servings * 23 g = 920 g protein, / 32.49 € = 28.32 g/€
	if summary.ProteinPerEuro == nil || *summary.ProteinPerEuro != 28.32 {
		t.Errorf("ProteinPerEuro = %v", summary.ProteinPerEuro)
	}
	if summary.Image == "" {
		t.Error("summary image must never be empty")
	}
	if summary.OffersCount != 2 {
		t.Errorf("OffersCount = %d", summary.OffersCount)
	}
}

func TestSimilarNeverEmptyWithFallback(t *testing.T) {
	products := []catalog.Product{
		testProduct(),
		{ID: 201, Name: "Créatine Monohydrate", Brand: "Autre"},
	}
	s := newService(&fakeCatalog{products: products}, &fakeSearch{})

	summaries, err := s.Similar(context.Background(), 101, 3)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected fallback to surface the unrelated product, got %d", len(summaries))
	}
	if summaries[0].Name != "Créatine Monohydrate" {
		t.Errorf("unexpected summary %q", summaries[0].Name)
	}
}

func TestSimilarUnknownBase(t *testing.T) {
	s := newService(&fakeCatalog{products: []catalog.Product{testProduct()}}, &fakeSearch{})
	_, err := s.Similar(context.Background(), 999, 3)
	if !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
