// Package alerts manages standing price alerts and the background jobs
// that snapshot prices and notify subscribers when a target is met.
package alerts

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wheyhunter/pkg/models"
	"wheyhunter/pkg/pricing"
)

var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrInvalidAlert  = errors.New("invalid alert")
)

// Alert is one standing request to be notified when a product's best
// total price drops to or below the target.
type Alert struct {
	ID          string     `json:"id"`
	ProductID   int        `json:"product_id"`
	Email       string     `json:"email"`
	TargetPrice float64    `json:"target_price"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
}

// Registry holds alerts in memory. Alerts fire once and deactivate;
// re-arming means creating a new alert.
type Registry struct {
	mu     sync.Mutex
	alerts map[string]*Alert
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		alerts: make(map[string]*Alert),
		now:    time.Now,
	}
}

// Create validates and registers a new alert.
func (r *Registry) Create(productID int, email string, targetPrice float64) (*Alert, error) {
	if productID <= 0 || targetPrice <= 0 {
		return nil, ErrInvalidAlert
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidAlert
	}

	alert := &Alert{
		ID:          uuid.NewString(),
		ProductID:   productID,
		Email:       email,
		TargetPrice: targetPrice,
		Active:      true,
		CreatedAt:   r.now(),
	}

	r.mu.Lock()
	r.alerts[alert.ID] = alert
	r.mu.Unlock()

	clone := *alert
	return &clone, nil
}

// List returns alerts, optionally filtered by product or email, newest
// first.
func (r *Registry) List(productID int, email string) []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Alert
	for _, alert := range r.alerts {
		if productID > 0 && alert.ProductID != productID {
			continue
		}
		if email != "" && !strings.EqualFold(alert.Email, email) {
			continue
		}
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes an alert by id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[id]; !ok {
		return ErrAlertNotFound
	}
	delete(r.alerts, id)
	return nil
}

// active returns copies of the alerts still waiting to fire, grouped by
// product.
func (r *Registry) active() map[int][]Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int][]Alert)
	for _, alert := range r.alerts {
		if alert.Active {
			out[alert.ProductID] = append(out[alert.ProductID], *alert)
		}
	}
	return out
}

// markTriggered deactivates a fired alert and stamps the trigger time.
func (r *Registry) markTriggered(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if alert, ok := r.alerts[id]; ok {
		alert.Active = false
		t := r.now()
		alert.TriggeredAt = &t
	}
}

// BestTotalFunc resolves the current best total price for a product.
type BestTotalFunc func(ctx context.Context, productID int) (*models.Deal, error)

// Evaluate fires every active alert whose target the current best total
// meets. It returns the number of alerts triggered. Products whose best
// price cannot be resolved are skipped, not failed.
func (r *Registry) Evaluate(ctx context.Context, bestDeal BestTotalFunc, mailer Mailer) int {
	triggered := 0
	for productID, alerts := range r.active() {
		deal, err := bestDeal(ctx, productID)
		if err != nil || deal == nil {
			continue
		}
		total := pricing.ExtractTotal(deal)
		if total == nil {
			continue
		}
		for _, alert := range alerts {
			if *total > alert.TargetPrice {
				continue
			}
			if mailer != nil {
				if err := mailer.SendPriceAlert(alert, *deal, *total); err != nil {
					continue
				}
			}
			r.markTriggered(alert.ID)
			triggered++
		}
	}
	return triggered
}
