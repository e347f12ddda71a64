package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/penlight/vitalsum/logging"
	"github.com/penlight/vitalsum/models"
)

// EvictionPolicy selects which entries to drop when the cache is over
// capacity.
type EvictionPolicy string

const (
	PolicyLRU       EvictionPolicy = "lru"
	PolicyLFU       EvictionPolicy = "lfu"
	PolicyFIFO      EvictionPolicy = "fifo"
	PolicyTTL       EvictionPolicy = "ttl"
	PolicySizeBased EvictionPolicy = "size"
)

// Valid reports whether the policy is one of the supported kinds.
func (p EvictionPolicy) Valid() bool {
	switch p {
	case PolicyLRU, PolicyLFU, PolicyFIFO, PolicyTTL, PolicySizeBased:
		return true
	}
	return false
}

// Entry is a cached analysis result with its bookkeeping. Entries are
// owned by the cache and mutated only through cache operations.
type Entry struct {
	Key            string                `json:"key"`
	Value          models.AnalysisResult `json:"value"`
	CreatedAt      time.Time             `json:"created_at"`
	ExpiresAt      time.Time             `json:"expires_at"`
	LastAccessedAt time.Time             `json:"last_accessed_at"`
	HitCount       int64                 `json:"hit_count"`
	SizeBytes      int64                 `json:"size_bytes"`

	seq uint64 // insertion order, breaks eviction ties
}

// Config configures the result cache.
type Config struct {
	MaxEntries int            `json:"max_entries"`
	DefaultTTL time.Duration  `json:"default_ttl"`
	Policy     EvictionPolicy `json:"policy"`
}

// Stats tracks cache effectiveness.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	HitRate     float64 `json:"hit_rate"`
}

func (s *Stats) updateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// ResultCache is a fixed-capacity keyed store of analysis results with
// TTL and a configurable eviction policy. Expired entries are removed
// lazily on lookup. All operations are safe for concurrent use.
type ResultCache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*Entry
	seq     uint64
	stats   Stats
	now     func() time.Time
}

// New creates a result cache with the given configuration.
func New(cfg Config) *ResultCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 64
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = PolicyLRU
	}

	return &ResultCache{
		cfg:     cfg,
		entries: make(map[string]*Entry),
		stats:   Stats{MaxSize: cfg.MaxEntries},
		now:     time.Now,
	}
}

// Get returns the cached result for key, or ok=false if the key is
// absent or expired. A hit bumps HitCount and LastAccessedAt; an
// expired entry is removed as a side effect.
func (c *ResultCache) Get(key string) (models.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		c.stats.updateHitRate()
		return models.AnalysisResult{}, false
	}

	now := c.now()
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.stats.Expirations++
		c.stats.Misses++
		c.stats.updateHitRate()
		return models.AnalysisResult{}, false
	}

	entry.HitCount++
	entry.LastAccessedAt = now
	c.stats.Hits++
	c.stats.updateHitRate()
	return entry.Value, true
}

// Put inserts or overwrites the entry for key with the given TTL. A
// non-positive ttl falls back to the configured default. If the cache
// is over capacity afterwards, entries are evicted per the configured
// policy until the size bound holds again.
func (c *ResultCache) Put(key string, value models.AnalysisResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.seq++
	c.entries[key] = &Entry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
		SizeBytes:      estimateSize(value),
		seq:            c.seq,
	}
	c.stats.Size = len(c.entries)

	c.evictLocked(now)
}

// Clear removes all entries unconditionally.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.stats.Size = 0
}

// PurgeExpired removes all expired entries. Idempotent and safe to
// call at any time.
func (c *ResultCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpiredLocked(c.now())
}

// Len returns the number of entries currently stored.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// UpdateConfig applies new tuning to a live cache. Shrinking
// MaxEntries evicts down to the new bound immediately under the new
// policy; existing entries keep the TTL they were stored with.
func (c *ResultCache) UpdateConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 64
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = PolicyLRU
	}

	c.cfg = cfg
	c.stats.MaxSize = cfg.MaxEntries
	c.evictLocked(c.now())
}

// Stats returns a snapshot of the cache statistics.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.entries)
	return stats
}

// Snapshot returns a copy of every live entry, for diagnostics and
// export.
func (c *ResultCache) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (c *ResultCache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			c.stats.Expirations++
			removed++
		}
	}
	c.stats.Size = len(c.entries)
	return removed
}

// evictLocked restores the size bound after an insert. The TTL policy
// purges expired entries first, then falls back to soonest-expiry
// eviction so the capacity invariant still holds.
func (c *ResultCache) evictLocked(now time.Time) {
	if len(c.entries) <= c.cfg.MaxEntries {
		return
	}

	if c.cfg.Policy == PolicyTTL {
		c.purgeExpiredLocked(now)
		if len(c.entries) <= c.cfg.MaxEntries {
			return
		}
	}

	victims := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		victims = append(victims, e)
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		switch c.cfg.Policy {
		case PolicyLFU:
			if a.HitCount != b.HitCount {
				return a.HitCount < b.HitCount
			}
		case PolicyFIFO:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case PolicyTTL:
			if !a.ExpiresAt.Equal(b.ExpiresAt) {
				return a.ExpiresAt.Before(b.ExpiresAt)
			}
		case PolicySizeBased:
			if a.SizeBytes != b.SizeBytes {
				return a.SizeBytes > b.SizeBytes
			}
		default: // LRU
			if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
				return a.LastAccessedAt.Before(b.LastAccessedAt)
			}
		}
		return a.seq < b.seq
	})

	over := len(c.entries) - c.cfg.MaxEntries
	for i := 0; i < over; i++ {
		logging.LogDebugf("Evicting cache entry: key=%s policy=%s hits=%d",
			victims[i].Key, c.cfg.Policy, victims[i].HitCount)
		delete(c.entries, victims[i].Key)
		c.stats.Evictions++
	}
	c.stats.Size = len(c.entries)
}

// estimateSize provides a rough byte estimate for a cached result.
func estimateSize(value models.AnalysisResult) int64 {
	size := int64(128) // local scores and metadata
	if value.Remote != nil {
		size += int64(len(value.Remote.Headline) + len(value.Remote.EnergyComment) +
			len(value.Remote.DataQuality) + len(value.Remote.Model))
		for k, v := range value.Remote.TagInsights {
			size += int64(len(k) + len(v))
		}
		for _, s := range value.Remote.ActionSuggestions {
			size += int64(len(s))
		}
	}
	return size
}
