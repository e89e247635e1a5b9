package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.CatalogMode != "static" {
		t.Errorf("CatalogMode = %q", cfg.CatalogMode)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %s", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 512 {
		t.Errorf("CacheMaxEntries = %d", cfg.CacheMaxEntries)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CATALOG_MODE", "http")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("ENRICH_SEARCH_RESULTS", "true")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.CatalogMode != "http" {
		t.Errorf("CatalogMode = %q", cfg.CatalogMode)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %s", cfg.CacheTTL)
	}
	if !cfg.EnrichSearchResults {
		t.Error("EnrichSearchResults not applied")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "many")
	t.Setenv("CACHE_TTL", "soon")

	cfg := Load()
	if cfg.CacheMaxEntries != 512 {
		t.Errorf("CacheMaxEntries = %d, want fallback", cfg.CacheMaxEntries)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %s, want fallback", cfg.CacheTTL)
	}
}
