package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wheyhunter/pkg/models"
)

func TestStaticProviderListProducts(t *testing.T) {
	p := NewStaticProvider()

	products, err := p.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 6 {
		t.Fatalf("expected 6 fixture products, got %d", len(products))
	}
	if products[0].ID != 101 || products[0].Brand != "MyProtein" {
		t.Errorf("unexpected first product: %+v", products[0])
	}
	if len(products[0].Offers) != 2 {
		t.Errorf("expected 2 offers on product 101, got %d", len(products[0].Offers))
	}
}

func TestStaticProviderClonesResults(t *testing.T) {
	p := NewStaticProvider()

	first, err := p.ProductWithOffers(context.Background(), 101)
	if err != nil {
		t.Fatalf("ProductWithOffers: %v", err)
	}
	first.Name = "mutated"
	*first.Offers[0].Price = 1.0

	second, err := p.ProductWithOffers(context.Background(), 101)
	if err != nil {
		t.Fatalf("ProductWithOffers: %v", err)
	}
	if second.Name == "mutated" {
		t.Error("mutation leaked into fixture product")
	}
	if *second.Offers[0].Price != 29.99 {
		t.Errorf("mutation leaked into fixture offer price: %v", *second.Offers[0].Price)
	}
}

func TestStaticProviderProductNotFound(t *testing.T) {
	p := NewStaticProvider()

	_, err := p.ProductWithOffers(context.Background(), 999)
	if !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestStaticProviderPriceHistorySince(t *testing.T) {
	p := NewStaticProvider()

	all, err := p.PriceHistory(context.Background(), 101, time.Time{})
	if err != nil {
		t.Fatalf("PriceHistory: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 history entries, got %d", len(all))
	}

	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	recent, err := p.PriceHistory(context.Background(), 101, since)
	if err != nil {
		t.Fatalf("PriceHistory: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries since %s, got %d", since, len(recent))
	}
}

func TestHTTPProviderProductWithOffers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/101" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":101,"name":"Impact Whey Isolate 1 kg","brand":"MyProtein","offers":[{"id":"mp-impact-vanilla","source":"MyProtein","price":29.99,"in_stock":true}]}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, 5*time.Second)

	product, err := p.ProductWithOffers(context.Background(), 101)
	if err != nil {
		t.Fatalf("ProductWithOffers: %v", err)
	}
	if product.Name != "Impact Whey Isolate 1 kg" {
		t.Errorf("unexpected name %q", product.Name)
	}
	if len(product.Offers) != 1 || product.Offers[0].Price == nil || *product.Offers[0].Price != 29.99 {
		t.Errorf("unexpected offers %+v", product.Offers)
	}
}

func TestHTTPProviderNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, 5*time.Second)

	_, err := p.ProductWithOffers(context.Background(), 42)
	if !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

type fakeCollector struct {
	source   string
	products []Product
	err      error
	calls    int
}

func (f *fakeCollector) Source() string { return f.source }

func (f *fakeCollector) Collect(ctx context.Context) ([]Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Product, len(f.products))
	copy(out, f.products)
	return out, nil
}

func TestCollectorProviderAssignsIDsPerVendor(t *testing.T) {
	a := &fakeCollector{source: "a", products: []Product{{Name: "one"}, {Name: "two"}}}
	b := &fakeCollector{source: "b", products: []Product{{Name: "three"}}}

	p := NewCollectorProvider(time.Minute, a, b)

	products, err := p.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}
	if products[0].ID != 1001 || products[1].ID != 1002 || products[2].ID != 2001 {
		t.Errorf("unexpected IDs: %d %d %d", products[0].ID, products[1].ID, products[2].ID)
	}
}

func TestCollectorProviderCachesSnapshot(t *testing.T) {
	c := &fakeCollector{source: "a", products: []Product{{Name: "one"}}}
	p := NewCollectorProvider(time.Minute, c)

	if _, err := p.ListProducts(context.Background()); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if _, err := p.ProductWithOffers(context.Background(), 1001); err != nil {
		t.Fatalf("ProductWithOffers: %v", err)
	}
	if c.calls != 1 {
		t.Errorf("expected 1 collection pass, got %d", c.calls)
	}
}

func TestCollectorProviderSkipsFailedVendor(t *testing.T) {
	broken := &fakeCollector{source: "broken", err: errors.New("boom")}
	ok := &fakeCollector{source: "ok", products: []Product{{Name: "one"}}}

	p := NewCollectorProvider(time.Minute, broken, ok)

	products, err := p.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product from the healthy vendor, got %d", len(products))
	}

	allBroken := NewCollectorProvider(time.Minute, broken)
	if _, err := allBroken.ListProducts(context.Background()); err == nil {
		t.Fatal("expected error when every collector fails")
	}
}
