// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the service.
type Config struct {
	Port string

	// CatalogMode selects the catalogue provider: "static", "http" or
	// "collector".
	CatalogMode    string
	CatalogBaseURL string

	SearchAPIKey  string
	SearchBaseURL string

	CacheTTL        time.Duration
	CacheMaxEntries int

	ProviderTimeout     time.Duration
	EnrichSearchResults bool
	ForceImageHTTPS     bool

	HistoryDBPath    string
	SnapshotInterval time.Duration

	SendGridAPIKey string
	AlertFromName  string
	AlertFromEmail string
}

// Load reads the environment. A missing .env file is not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Config: could not load .env: %v", err)
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		CatalogMode:         getEnv("CATALOG_MODE", "static"),
		CatalogBaseURL:      getEnv("CATALOG_BASE_URL", ""),
		SearchAPIKey:        getEnv("SEARCH_API_KEY", ""),
		SearchBaseURL:       getEnv("SEARCH_BASE_URL", ""),
		CacheTTL:            getDuration("CACHE_TTL", 30*time.Minute),
		CacheMaxEntries:     getInt("CACHE_MAX_ENTRIES", 512),
		ProviderTimeout:     getDuration("PROVIDER_TIMEOUT", 20*time.Second),
		EnrichSearchResults: getBool("ENRICH_SEARCH_RESULTS", false),
		ForceImageHTTPS:     getBool("FORCE_IMAGE_HTTPS", true),
		HistoryDBPath:       getEnv("HISTORY_DB_PATH", "history.db"),
		SnapshotInterval:    getDuration("SNAPSHOT_INTERVAL", time.Hour),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		AlertFromName:       getEnv("ALERT_FROM_NAME", "Whey Hunter"),
		AlertFromEmail:      getEnv("ALERT_FROM_EMAIL", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Config: invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Config: invalid %s=%q, using %t", key, value, fallback)
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Config: invalid %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return parsed
}
