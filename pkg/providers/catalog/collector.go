package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wheyhunter/pkg/logger"
	"wheyhunter/pkg/models"
)

// Collector scrapes one vendor's product listing directly.
type Collector interface {
	Source() string
	Collect(ctx context.Context) ([]Product, error)
}

// CollectorProvider builds a catalogue by running vendor collectors. A
// collection pass is expensive, so results are cached and reused until
// the refresh interval elapses. Collectors have no price history.
type CollectorProvider struct {
	collectors []Collector
	refresh    time.Duration

	mu          sync.Mutex
	products    []Product
	collectedAt time.Time
}

func NewCollectorProvider(refresh time.Duration, collectors ...Collector) *CollectorProvider {
	if refresh <= 0 {
		refresh = 15 * time.Minute
	}
	return &CollectorProvider{collectors: collectors, refresh: refresh}
}

func (p *CollectorProvider) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Product, len(products))
	for i, product := range products {
		out[i] = cloneProduct(product)
	}
	return out, nil
}

func (p *CollectorProvider) ProductWithOffers(ctx context.Context, id int) (*Product, error) {
	products, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, product := range products {
		if product.ID == id {
			clone := cloneProduct(product)
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("catalog: product %d: %w", id, models.ErrProductNotFound)
}

// PriceHistory is always empty for collected catalogues; history only
// exists where a store records snapshots over time.
func (p *CollectorProvider) PriceHistory(ctx context.Context, id int, since time.Time) ([]HistoryEntry, error) {
	return nil, nil
}

// snapshot returns the cached collection, re-running the collectors when
// it has gone stale. A collector failure skips that vendor and keeps the
// rest; only a pass where every collector fails is an error.
func (p *CollectorProvider) snapshot(ctx context.Context) ([]Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.products != nil && time.Since(p.collectedAt) < p.refresh {
		return p.products, nil
	}

	var collected []Product
	failures := 0
	// Collector IDs restart every pass. Block offsets keep them unique
	// across vendors within one snapshot.
	for idx, collector := range p.collectors {
		products, err := collector.Collect(ctx)
		if err != nil {
			failures++
			logger.Dedup("catalog: collector %s: %v", collector.Source(), err)
			continue
		}
		base := (idx + 1) * 1000
		for i := range products {
			products[i].ID = base + i + 1
		}
		collected = append(collected, products...)
	}

	if len(collected) == 0 && failures == len(p.collectors) && failures > 0 {
		return nil, fmt.Errorf("catalog: all %d collectors failed", failures)
	}

	p.products = collected
	p.collectedAt = time.Now()
	return p.products, nil
}
