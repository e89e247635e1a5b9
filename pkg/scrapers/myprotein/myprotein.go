// Package myprotein collects whey listings straight from the vendor's
// category page.
package myprotein

import (
	"context"
	"log"
	"strings"

	"github.com/gocolly/colly/v2"

	"wheyhunter/pkg/pricing"
	"wheyhunter/pkg/providers/catalog"
)

const (
	Source  = "MyProtein"
	BaseURL = "https://www.myprotein.fr/nutrition-sportive/proteines.list"
)

type Scraper struct {
	Collector *colly.Collector
	BaseURL   string
}

func NewScraper() *Scraper {
	c := colly.NewCollector(
		colly.AllowedDomains("www.myprotein.fr", "127.0.0.1"), // localhost for testing
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
	)
	return &Scraper{
		Collector: c,
		BaseURL:   BaseURL,
	}
}

func (s *Scraper) Source() string { return Source }

// Collect scrapes the category listing. Every product card becomes one
// catalogue product carrying a single vendor offer.
func (s *Scraper) Collect(ctx context.Context) ([]catalog.Product, error) {
	var products []catalog.Product

	s.Collector.OnHTML(".product-item", func(e *colly.HTMLElement) {
		name := strings.TrimSpace(e.ChildText(".product-item-title"))
		if name == "" {
			return
		}

		priceText := e.ChildText(".product-item-price")
		link := e.Request.AbsoluteURL(e.ChildAttr("a.product-item-link", "href"))
		image := e.ChildAttr("img.product-item-image", "src")
		if image == "" {
			image = e.ChildAttr("img.product-item-image", "data-src")
		}

		inStock := !strings.Contains(strings.ToLower(e.Text), "rupture")

		products = append(products, catalog.Product{
			Name:  name,
			Brand: Source,
			Image: image,
			Offers: []catalog.Offer{{
				ID:       e.Attr("data-product-id"),
				Source:   Source,
				Price:    pricing.ParseAmount(priceText),
				Currency: "EUR",
				URL:      link,
				InStock:  &inStock,
			}},
		})
	})

	log.Printf("Navigating to %s", s.BaseURL)
	if err := s.Collector.Visit(s.BaseURL); err != nil {
		return nil, err
	}
	s.Collector.Wait()

	return products, nil
}
