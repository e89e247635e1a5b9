package alerts

import (
	"context"
	"sync"
	"time"

	"wheyhunter/pkg/history"
	"wheyhunter/pkg/logger"
	"wheyhunter/pkg/models"
	"wheyhunter/pkg/observability"
	"wheyhunter/pkg/pricing"
	"wheyhunter/pkg/providers/catalog"
)

// Runner periodically snapshots best prices into the history store and
// evaluates standing alerts. Each job is single-flight: a pass that is
// still running when the next tick arrives makes the tick a no-op.
type Runner struct {
	Registry *Registry
	Mailer   Mailer
	Catalog  catalog.Provider
	History  *history.Store
	BestDeal BestTotalFunc

	Interval time.Duration

	snapshotBusy sync.Mutex
	alertBusy    sync.Mutex
}

// Run ticks until the context is cancelled. One pass runs immediately
// at startup so fresh deployments have a first price point.
func (r *Runner) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	go r.Snapshot(ctx)
	go r.EvaluateAlerts(ctx)
}

// Snapshot records the current best total of every catalogue product.
func (r *Runner) Snapshot(ctx context.Context) {
	if r.Catalog == nil || r.History == nil {
		return
	}
	if !r.snapshotBusy.TryLock() {
		return
	}
	defer r.snapshotBusy.Unlock()

	products, err := r.Catalog.ListProducts(ctx)
	if err != nil {
		logger.Dedup("alerts: snapshot list: %v", err)
		return
	}

	recorded := 0
	for _, product := range products {
		deal, err := r.BestDeal(ctx, product.ID)
		if err != nil || deal == nil {
			continue
		}
		total := pricing.ExtractTotal(deal)
		if total == nil {
			continue
		}
		point := models.PricePoint{
			RecordedAt: time.Now().UTC(),
			Source:     deal.Vendor,
			Price:      pricing.NewPrice(total, deal.Price.Currency),
		}
		if err := r.History.Record(product.ID, point); err != nil {
			logger.Dedup("alerts: snapshot product %d: %v", product.ID, err)
			continue
		}
		recorded++
	}
	observability.SnapshotRuns.Inc()
	logger.Dedup("alerts: snapshot recorded %d price points", recorded)
}

// EvaluateAlerts fires alerts whose targets are met.
func (r *Runner) EvaluateAlerts(ctx context.Context) {
	if r.Registry == nil || r.BestDeal == nil {
		return
	}
	if !r.alertBusy.TryLock() {
		return
	}
	defer r.alertBusy.Unlock()

	triggered := r.Registry.Evaluate(ctx, r.BestDeal, r.Mailer)
	if triggered > 0 {
		observability.AlertsTriggered.Add(float64(triggered))
		logger.Dedup("alerts: triggered %d alerts", triggered)
	}
}
