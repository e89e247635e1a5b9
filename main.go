package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	scalargo "github.com/bdpiprava/scalar-go"

	"wheyhunter/pkg/aggregator"
	"wheyhunter/pkg/alerts"
	"wheyhunter/pkg/api"
	"wheyhunter/pkg/cache"
	"wheyhunter/pkg/config"
	"wheyhunter/pkg/history"
	"wheyhunter/pkg/images"
	"wheyhunter/pkg/models"
	"wheyhunter/pkg/observability"
	"wheyhunter/pkg/providers/catalog"
	"wheyhunter/pkg/providers/shopsearch"
	"wheyhunter/pkg/scrapers/amazon"
	"wheyhunter/pkg/scrapers/myprotein"
)

// aggregationSemaphore caps concurrent comparison requests so a traffic
// burst cannot fan out into an unbounded number of provider calls.
var aggregationSemaphore = make(chan struct{}, 8)

type server struct {
	service  *aggregator.Service
	catalog  catalog.Provider
	registry *alerts.Registry
	history  *history.Store
}

func main() {
	cfg := config.Load()

	provider := buildCatalogProvider(cfg)

	var search aggregator.SearchClient
	if cfg.SearchAPIKey != "" {
		search = shopsearch.NewClient(cfg.SearchBaseURL, cfg.SearchAPIKey, cfg.ProviderTimeout)
	} else {
		log.Println("Search provider disabled: SEARCH_API_KEY not set")
	}

	store := cache.NewMemoryStore(cfg.CacheTTL, cfg.CacheMaxEntries)
	resolver := images.Resolver{ForceHTTPS: cfg.ForceImageHTTPS}

	service := aggregator.New(provider, search, store, resolver)
	service.ProviderTimeout = cfg.ProviderTimeout
	service.EnrichSearchResults = cfg.EnrichSearchResults

	historyStore, err := history.NewStore(cfg.HistoryDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize history store: %v", err)
	}
	defer historyStore.Close()
	log.Printf("History store at %s", cfg.HistoryDBPath)

	srv := &server{
		service:  service,
		catalog:  provider,
		registry: alerts.NewRegistry(),
		history:  historyStore,
	}

	runner := &alerts.Runner{
		Registry: srv.registry,
		Mailer: &alerts.SendGridMailer{
			APIKey:    cfg.SendGridAPIKey,
			FromName:  cfg.AlertFromName,
			FromEmail: cfg.AlertFromEmail,
		},
		Catalog:  provider,
		History:  historyStore,
		BestDeal: srv.bestDeal,
		Interval: cfg.SnapshotInterval,
	}
	go runner.Run(context.Background())

	http.HandleFunc("/", srv.rootHandler)
	http.Handle("/metrics", observability.Handler())

	ip := GetOutboundIP()
	if ip != nil {
		fmt.Printf("Local Network URL: http://%s:%s\n", ip.String(), cfg.Port)
	} else {
		fmt.Println("Could not determine local IP address.")
	}
	fmt.Printf("Access URL: http://localhost:%s\n", cfg.Port)
	fmt.Printf("API Docs: http://localhost:%s/\n", cfg.Port)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           nil,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Fatal(httpServer.ListenAndServe())
}

func buildCatalogProvider(cfg config.Config) catalog.Provider {
	switch cfg.CatalogMode {
	case "http":
		if cfg.CatalogBaseURL == "" {
			log.Println("CATALOG_MODE=http without CATALOG_BASE_URL, using static catalogue")
			return catalog.NewStaticProvider()
		}
		return catalog.NewHTTPProvider(cfg.CatalogBaseURL, cfg.ProviderTimeout)
	case "collector":
		return catalog.NewCollectorProvider(0, myprotein.NewScraper(), amazon.NewScraper())
	default:
		return catalog.NewStaticProvider()
	}
}

// bestDeal resolves the currently cheapest aggregated offer for a
// product; the alert runner snapshots and evaluates against it.
func (s *server) bestDeal(ctx context.Context, productID int) (*models.Deal, error) {
	_, deals, err := s.service.OffersForProduct(ctx, productID, 10)
	if err != nil {
		return nil, err
	}
	for i := range deals {
		if deals[i].IsBestPrice {
			return &deals[i], nil
		}
	}
	if len(deals) > 0 {
		return &deals[0], nil
	}
	return nil, models.ErrProductNotFound
}

func (s *server) rootHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/compare":
		s.compareHandler(w, r)
	case strings.HasPrefix(r.URL.Path, "/products"):
		s.productsHandler(w, r)
	case strings.HasPrefix(r.URL.Path, "/deals/"):
		s.dealDetailHandler(w, r)
	case strings.HasPrefix(r.URL.Path, "/alerts"):
		s.alertsHandler(w, r)
	case r.URL.Path == "/":
		serveDocs(w)
	default:
		api.WriteNotFound(w, "Unknown route", r.URL.Path)
	}
}

func serveDocs(w http.ResponseWriter) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir("./"),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Whey Hunter API"),
		),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}

// compareHandler serves GET /compare?q=...&marque=...&categorie=...&limit=...
func (s *server) compareHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, "Use GET for comparisons.", r.URL.Path)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		api.WriteBadRequest(w, "Missing query parameter: q", r.URL.Path)
		return
	}

	limit, err := parseLimit(r, 10)
	if err != nil {
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}

	filters := aggregator.Filters{
		Brand:    r.URL.Query().Get("marque"),
		Category: r.URL.Query().Get("categorie"),
	}

	aggregationSemaphore <- struct{}{}
	defer func() { <-aggregationSemaphore }()

	deals := s.service.Compare(r.Context(), query, filters, limit)
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"count": len(deals),
		"deals": deals,
	})
}

// productsHandler dispatches the /products subtree:
//
//	GET /products
//	GET /products/{id}/offers
//	GET /products/{id}/similar
//	GET /products/{id}/price-history
func (s *server) productsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, "Use GET for product resources.", r.URL.Path)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// parts[0] = "products"
	// parts[1] = {id}
	// parts[2] = "offers" | "similar" | "price-history"

	if len(parts) == 1 {
		summaries, err := s.service.ListSummaries(r.Context())
		if err != nil {
			s.writeUpstreamError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, summaries)
		return
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		api.WriteBadRequest(w, fmt.Sprintf("Invalid product ID: %s", parts[1]), r.URL.Path)
		return
	}

	if len(parts) < 3 {
		api.WriteBadRequest(w, "Expected /products/{id}/offers, /products/{id}/similar or /products/{id}/price-history", r.URL.Path)
		return
	}

	switch parts[2] {
	case "offers":
		s.offersHandler(w, r, id)
	case "similar":
		s.similarHandler(w, r, id)
	case "price-history":
		s.priceHistoryHandler(w, r, id)
	default:
		api.WriteBadRequest(w, fmt.Sprintf("Unknown product resource: %s", parts[2]), r.URL.Path)
	}
}

func (s *server) offersHandler(w http.ResponseWriter, r *http.Request, id int) {
	limit, err := parseLimit(r, 10)
	if err != nil {
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}

	aggregationSemaphore <- struct{}{}
	defer func() { <-aggregationSemaphore }()

	product, deals, err := s.service.OffersForProduct(r.Context(), id, limit)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"product": s.service.Summarize(*product, deals),
		"offers":  deals,
	})
}

func (s *server) similarHandler(w http.ResponseWriter, r *http.Request, id int) {
	limit, err := parseLimit(r, 4)
	if err != nil {
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}

	summaries, err := s.service.Similar(r.Context(), id, limit)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, summaries)
}

func (s *server) priceHistoryHandler(w http.ResponseWriter, r *http.Request, id int) {
	days := 90
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 365 {
			api.WriteBadRequest(w, fmt.Sprintf("Invalid days parameter: %s", raw), r.URL.Path)
			return
		}
		days = parsed
	}
	since := time.Now().AddDate(0, 0, -days)

	points := s.collectHistory(r.Context(), id, since)
	stats := history.BuildStats(points, "EUR")

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"product_id": id,
		"days":       days,
		"history":    points,
		"statistics": stats,
	})
}

// collectHistory merges the catalogue's history endpoint with locally
// recorded snapshots, ordered oldest first.
func (s *server) collectHistory(ctx context.Context, id int, since time.Time) []models.PricePoint {
	var points []models.PricePoint

	entries, err := s.catalog.PriceHistory(ctx, id, since)
	if err != nil {
		log.Printf("Price history: catalog provider for %d: %v", id, err)
	}
	for _, entry := range entries {
		if entry.Price == nil {
			continue
		}
		currency := entry.Currency
		if currency == "" {
			currency = "EUR"
		}
		amount := *entry.Price
		points = append(points, models.PricePoint{
			RecordedAt: entry.RecordedAt,
			Source:     entry.Source,
			Price:      models.Price{Amount: &amount, Currency: currency},
		})
	}

	recorded, err := s.history.Since(id, since)
	if err != nil {
		log.Printf("Price history: local store for %d: %v", id, err)
	}
	points = append(points, recorded...)

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].RecordedAt.Before(points[j].RecordedAt)
	})
	return points
}

// dealDetailHandler serves GET /deals/{searchProductID}, resolving a
// search-provider product id into its seller offers.
func (s *server) dealDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, "Use GET for deal lookups.", r.URL.Path)
		return
	}

	productID := strings.TrimPrefix(r.URL.Path, "/deals/")
	if productID == "" || strings.Contains(productID, "/") {
		api.WriteBadRequest(w, "Expected /deals/{productId}", r.URL.Path)
		return
	}

	limit, err := parseLimit(r, 10)
	if err != nil {
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}

	aggregationSemaphore <- struct{}{}
	defer func() { <-aggregationSemaphore }()

	deals, err := s.service.DetailByID(r.Context(), productID, limit)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"offers":     deals,
	})
}

// alertsHandler dispatches the /alerts subtree:
//
//	POST   /alerts
//	GET    /alerts?product_id=...&email=...
//	DELETE /alerts/{id}
func (s *server) alertsHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/alerts" && r.Method == http.MethodPost:
		s.createAlertHandler(w, r)
	case r.URL.Path == "/alerts" && r.Method == http.MethodGet:
		s.listAlertsHandler(w, r)
	case strings.HasPrefix(r.URL.Path, "/alerts/") && r.Method == http.MethodDelete:
		s.deleteAlertHandler(w, r)
	default:
		api.WriteMethodNotAllowed(w, "Use POST /alerts, GET /alerts or DELETE /alerts/{id}.", r.URL.Path)
	}
}

func (s *server) createAlertHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID   int     `json:"product_id"`
		Email       string  `json:"email"`
		TargetPrice float64 `json:"target_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.WriteBadRequest(w, "Invalid JSON body.", r.URL.Path)
		return
	}
	defer r.Body.Close()

	if _, err := s.catalog.ProductWithOffers(r.Context(), payload.ProductID); err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	alert, err := s.registry.Create(payload.ProductID, payload.Email, payload.TargetPrice)
	if err != nil {
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}
	api.WriteJSON(w, http.StatusCreated, alert)
}

func (s *server) listAlertsHandler(w http.ResponseWriter, r *http.Request) {
	productID := 0
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.WriteBadRequest(w, fmt.Sprintf("Invalid product_id: %s", raw), r.URL.Path)
			return
		}
		productID = parsed
	}
	list := s.registry.List(productID, r.URL.Query().Get("email"))
	if list == nil {
		list = []alerts.Alert{}
	}
	api.WriteJSON(w, http.StatusOK, list)
}

func (s *server) deleteAlertHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/alerts/")
	if err := s.registry.Delete(id); err != nil {
		api.WriteNotFound(w, "Alert not found", r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 50 {
		return 0, fmt.Errorf("Invalid limit: %s. Must be between 1 and 50.", raw)
	}
	return limit, nil
}

// writeUpstreamError maps engine errors onto problem-details responses.
func (s *server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("Error serving %s: %v", r.URL.Path, err)

	switch {
	case errors.Is(err, models.ErrProductNotFound):
		api.WriteNotFound(w, "Product not found", r.URL.Path)
	case errors.Is(err, models.ErrInvalidInput):
		api.WriteBadRequest(w, "Invalid request", r.URL.Path)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout"):
		api.WriteGatewayTimeout(w, "Upstream service timed out: "+err.Error(), r.URL.Path)
	default:
		api.WriteInternalServerError(w, err, r.URL.Path)
	}
}
