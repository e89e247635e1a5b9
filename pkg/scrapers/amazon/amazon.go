// Package amazon collects whey listings from the marketplace's search
// results. The page is rendered client-side, so a headless browser does
// the fetching.
package amazon

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"wheyhunter/pkg/pricing"
	"wheyhunter/pkg/providers/catalog"
)

const (
	Source  = "Amazon"
	BaseURL = "https://www.amazon.fr/s?k=whey+protein"
)

type Scraper struct {
	BaseURL string
	Timeout time.Duration
}

func NewScraper() *Scraper {
	return &Scraper{
		BaseURL: BaseURL,
		Timeout: 60 * time.Second,
	}
}

func (s *Scraper) Source() string { return Source }

type resultCard struct {
	ASIN  string `json:"asin"`
	Title string `json:"title"`
	Price string `json:"price"`
	Link  string `json:"link"`
	Image string `json:"image"`
}

// Collect renders the search page and reads the result cards.
func (s *Scraper) Collect(ctx context.Context) ([]catalog.Product, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	scrapeCtx, cancelScrape := context.WithTimeout(browserCtx, timeout)
	defer cancelScrape()

	log.Printf("Navigating to %s", s.BaseURL)

	var cards []resultCard
	err := chromedp.Run(scrapeCtx,
		chromedp.Navigate(s.BaseURL),
		chromedp.WaitReady(`div[data-component-type='s-search-result']`, chromedp.ByQuery),
		chromedp.Evaluate(`
			Array.from(document.querySelectorAll("div[data-component-type='s-search-result']")).map(el => ({
				asin: el.getAttribute("data-asin") || "",
				title: el.querySelector("h2 span")?.innerText || "",
				price: el.querySelector(".a-price .a-offscreen")?.innerText || "",
				link: el.querySelector("h2 a")?.href || "",
				image: el.querySelector("img.s-image")?.src || ""
			}))
		`, &cards),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp failed: %w", err)
	}

	var products []catalog.Product
	for _, card := range cards {
		name := strings.TrimSpace(card.Title)
		if name == "" || card.ASIN == "" {
			continue
		}
		price := pricing.ParseAmount(card.Price)
		inStock := price != nil

		products = append(products, catalog.Product{
			Name:  name,
			Brand: Source,
			Image: card.Image,
			Offers: []catalog.Offer{{
				ID:       card.ASIN,
				Source:   Source,
				Price:    price,
				Currency: "EUR",
				URL:      card.Link,
				InStock:  &inStock,
			}},
		})
	}

	if len(products) == 0 {
		return nil, fmt.Errorf("amazon: no result cards on %s", s.BaseURL)
	}
	return products, nil
}
