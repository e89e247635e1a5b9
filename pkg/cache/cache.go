// Package cache keeps per-product comparison state addressable under
// every identifier a product is known by: catalogue id, search provider
// product id, or deal link. Entries expire and the store is bounded, so
// it never grows with the query stream.
package cache

import (
	"strings"
	"sync"
	"time"

	"wheyhunter/pkg/models"
)

// RawPayload is a provider payload retained for alias extraction and
// debugging. Payloads are treated as immutable once stored.
type RawPayload interface {
	Aliases() []string
}

// Entry is the cached comparison state of one product.
type Entry struct {
	Key       string
	Summary   *models.ProductSummary
	Deal      *models.Deal
	Offers    []models.Deal
	Raw       map[string]RawPayload
	Query     string
	Filters   map[string]string
	UpdatedAt time.Time
}

// Update is a merge patch: nil fields keep the stored value, non-nil
// fields replace it. Offers replace wholesale, never append.
type Update struct {
	Summary *models.ProductSummary
	Deal    *models.Deal
	Offers  []models.Deal
	Raw     RawPayload
	RawTag  string
	Query   string
	Filters map[string]string
}

// Store resolves entries by key or by any known alias.
type Store interface {
	Get(id string) (*Entry, bool)
	Put(key string, update Update)
	Len() int
}

// MemoryStore is the in-process Store. Lookups by alias are O(1)
// through a secondary index; a linear scan remains as a fallback for
// aliases that only appear inside raw payloads stored before indexing.
type MemoryStore struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*Entry
	aliases map[string]string
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &MemoryStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*Entry),
		aliases:    make(map[string]string),
		now:        time.Now,
	}
}

// Get returns a deep copy of the entry known under the id, following
// the alias index first and falling back to a scan over every entry's
// alias set. Expired entries are misses.
func (s *MemoryStore) Get(id string) (*Entry, bool) {
	normalized := normalizeAlias(id)
	if normalized == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.lookup(normalized); ok {
		return cloneEntry(entry), true
	}

	for _, entry := range s.entries {
		if s.expired(entry) {
			continue
		}
		for _, alias := range entryAliases(entry) {
			if alias == normalized {
				s.aliases[alias] = entry.Key
				return cloneEntry(entry), true
			}
		}
	}
	return nil, false
}

func (s *MemoryStore) lookup(normalized string) (*Entry, bool) {
	if entry, ok := s.entries[normalized]; ok && !s.expired(entry) {
		return entry, true
	}
	if key, ok := s.aliases[normalized]; ok {
		if entry, ok := s.entries[key]; ok && !s.expired(entry) {
			return entry, true
		}
	}
	return nil, false
}

// Put merges the update into the entry stored under key, creating it
// when absent, and refreshes its alias index.
func (s *MemoryStore) Put(key string, update Update) {
	normalized := normalizeAlias(key)
	if normalized == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[normalized]
	if !ok || s.expired(entry) {
		entry = &Entry{Key: normalized}
		s.entries[normalized] = entry
	}

	if update.Summary != nil {
		entry.Summary = update.Summary.Clone()
	}
	if update.Deal != nil {
		entry.Deal = update.Deal.Clone()
	}
	if update.Offers != nil {
		entry.Offers = models.CloneDeals(update.Offers)
	}
	if update.Raw != nil {
		tag := update.RawTag
		if tag == "" {
			tag = "search"
		}
		if entry.Raw == nil {
			entry.Raw = make(map[string]RawPayload)
		}
		entry.Raw[tag] = update.Raw
	}
	if update.Query != "" {
		entry.Query = update.Query
	}
	if update.Filters != nil {
		entry.Filters = cloneFilters(update.Filters)
	}
	entry.UpdatedAt = s.now()

	for _, alias := range entryAliases(entry) {
		s.aliases[alias] = entry.Key
	}

	s.evictLocked()
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.entries {
		if !s.expired(entry) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(entry *Entry) bool {
	return s.now().Sub(entry.UpdatedAt) > s.ttl
}

// evictLocked drops expired entries first, then the oldest live entries
// until the store fits its bound.
func (s *MemoryStore) evictLocked() {
	for key, entry := range s.entries {
		if s.expired(entry) {
			s.removeLocked(key)
		}
	}

	for len(s.entries) > s.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, entry := range s.entries {
			if oldestKey == "" || entry.UpdatedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.UpdatedAt
			}
		}
		if oldestKey == "" {
			return
		}
		s.removeLocked(oldestKey)
	}
}

func (s *MemoryStore) removeLocked(key string) {
	delete(s.entries, key)
	for alias, target := range s.aliases {
		if target == key {
			delete(s.aliases, alias)
		}
	}
}

// entryAliases collects every identifier the entry answers to: its key,
// the summary's ids and link, the deal's ids and link, and whatever the
// raw payloads expose.
func entryAliases(entry *Entry) []string {
	var out []string
	add := func(values ...string) {
		for _, v := range values {
			if alias := normalizeAlias(v); alias != "" {
				out = append(out, alias)
			}
		}
	}

	add(entry.Key)
	if entry.Summary != nil {
		add(entry.Summary.ID, entry.Summary.ProductID, entry.Summary.Link)
	}
	if entry.Deal != nil {
		add(entry.Deal.ProductID, entry.Deal.ID, entry.Deal.Link)
	}
	for _, raw := range entry.Raw {
		add(raw.Aliases()...)
	}
	return out
}

func normalizeAlias(v string) string {
	return strings.TrimSpace(v)
}

func cloneEntry(entry *Entry) *Entry {
	clone := &Entry{
		Key:       entry.Key,
		Query:     entry.Query,
		UpdatedAt: entry.UpdatedAt,
	}
	if entry.Summary != nil {
		clone.Summary = entry.Summary.Clone()
	}
	if entry.Deal != nil {
		clone.Deal = entry.Deal.Clone()
	}
	if entry.Offers != nil {
		clone.Offers = models.CloneDeals(entry.Offers)
	}
	if entry.Raw != nil {
		clone.Raw = make(map[string]RawPayload, len(entry.Raw))
		for tag, raw := range entry.Raw {
			clone.Raw[tag] = raw
		}
	}
	if entry.Filters != nil {
		clone.Filters = cloneFilters(entry.Filters)
	}
	return clone
}

func cloneFilters(filters map[string]string) map[string]string {
	out := make(map[string]string, len(filters))
	for k, v := range filters {
		out[k] = v
	}
	return out
}
