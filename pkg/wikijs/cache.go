package wikijs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// CacheStats is a point-in-time view of cache counters.
type CacheStats struct {
	Hits        uint64 `json:"hits"        yaml:"hits"`
	Misses      uint64 `json:"misses"      yaml:"misses"`
	Evictions   uint64 `json:"evictions"   yaml:"evictions"`
	Expirations uint64 `json:"expirations" yaml:"expirations"`
	Size        int    `json:"size"        yaml:"size"`
	MaxEntries  int    `json:"max_entries" yaml:"max_entries"`
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

type cacheEntry struct {
	key        string
	value      any
	expiresAt  time.Time
	insertedAt time.Time
	tags       []string

	prev, next *cacheEntry
}

// ResultCache is a bounded LRU store of successful read results with
// per-entry TTL and tag based invalidation. The zero value is not usable;
// construct with NewResultCache.
type ResultCache struct {
	maxEntries int
	defaultTTL time.Duration
	clock      Clock

	mu      sync.Mutex
	entries map[string]*cacheEntry
	tags    map[string]map[*cacheEntry]struct{}
	// root.next is the most recently used entry, root.prev the least.
	root  cacheEntry
	epoch uint64

	size        atomic.Int64
	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

// CacheOption configures a ResultCache.
type CacheOption func(*ResultCache)

// WithCacheClock sets the clock used for expiry.
func WithCacheClock(clock Clock) CacheOption {
	return func(c *ResultCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewResultCache creates a cache holding at most maxEntries results. Entries
// stored without an explicit TTL expire after defaultTTL.
func NewResultCache(maxEntries int, defaultTTL time.Duration, opts ...CacheOption) (*ResultCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("%w: cache max entries must be positive, got %d", ErrInvalidConfig, maxEntries)
	}

	if defaultTTL <= 0 {
		return nil, fmt.Errorf("%w: cache TTL must be positive, got %s", ErrInvalidConfig, defaultTTL)
	}

	c := &ResultCache{
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		clock:      SystemClock(),
		entries:    make(map[string]*cacheEntry),
		tags:       make(map[string]map[*cacheEntry]struct{}),
	}
	c.root.next = &c.root
	c.root.prev = &c.root

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get returns the value stored under fingerprint. An entry at or past its
// expiry is removed and reported as a miss.
func (c *ResultCache) Get(fingerprint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		c.misses.Add(1)

		return nil, false
	}

	if !c.clock.Now().Before(entry.expiresAt) {
		c.removeLocked(entry)
		c.expirations.Add(1)
		c.misses.Add(1)

		return nil, false
	}

	c.moveToFrontLocked(entry)
	c.hits.Add(1)

	return entry.value, true
}

// Set stores value under fingerprint, tagged with the resource ids it
// depends on. A ttl of zero or less uses the cache default. Overwriting an
// entry refreshes its TTL, recency and tags.
func (c *ResultCache) Set(fingerprint string, value any, ttl time.Duration, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(fingerprint, value, ttl, tags)
}

// Epoch returns a counter that advances on every invalidation. Pair it with
// SetIfUnchanged to avoid caching a result fetched before an invalidation.
func (c *ResultCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.epoch
}

// SetIfUnchanged stores the value only if no invalidation happened since
// epoch was read. It reports whether the value was stored.
func (c *ResultCache) SetIfUnchanged(epoch uint64, fingerprint string, value any, ttl time.Duration, tags ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return false
	}

	c.setLocked(fingerprint, value, ttl, tags)

	return true
}

// Invalidate removes every entry tagged with resourceID and returns how many
// were removed.
func (c *ResultCache) Invalidate(resourceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++

	tagged := c.tags[resourceID]
	removed := len(tagged)

	for entry := range tagged {
		c.removeLocked(entry)
	}

	return removed
}

// InvalidateAll empties the cache. Counters are kept.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.entries = make(map[string]*cacheEntry)
	c.tags = make(map[string]map[*cacheEntry]struct{})
	c.root.next = &c.root
	c.root.prev = &c.root
	c.size.Store(0)
}

// SweepExpired removes all expired entries and returns the count.
func (c *ResultCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0

	for entry := c.root.prev; entry != &c.root; {
		prev := entry.prev
		if !now.Before(entry.expiresAt) {
			c.removeLocked(entry)
			c.expirations.Add(1)
			removed++
		}

		entry = prev
	}

	return removed
}

// StartSweeper runs SweepExpired every interval until ctx is done.
func (c *ResultCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.SweepExpired()
			}
		}
	}()
}

// Stats returns the current counters without taking the cache lock.
func (c *ResultCache) Stats() CacheStats {
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        int(c.size.Load()),
		MaxEntries:  c.maxEntries,
	}
}

// ResetStats zeroes the hit, miss, eviction and expiration counters.
func (c *ResultCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expirations.Store(0)
}

// Len returns the number of stored entries, expired or not.
func (c *ResultCache) Len() int {
	return int(c.size.Load())
}

func (c *ResultCache) setLocked(fingerprint string, value any, ttl time.Duration, tags []string) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.clock.Now()

	if entry, ok := c.entries[fingerprint]; ok {
		c.untagLocked(entry)
		entry.value = value
		entry.insertedAt = now
		entry.expiresAt = now.Add(ttl)
		entry.tags = dedupe(tags)
		c.tagLocked(entry)
		c.moveToFrontLocked(entry)

		return
	}

	entry := &cacheEntry{
		key:        fingerprint,
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
		tags:       dedupe(tags),
	}
	c.entries[fingerprint] = entry
	c.tagLocked(entry)
	c.pushFrontLocked(entry)
	c.size.Add(1)

	for len(c.entries) > c.maxEntries {
		c.removeLocked(c.root.prev)
		c.evictions.Add(1)
	}
}

func (c *ResultCache) removeLocked(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	entry.prev = nil
	entry.next = nil

	c.untagLocked(entry)
	delete(c.entries, entry.key)
	c.size.Add(-1)
}

func (c *ResultCache) pushFrontLocked(entry *cacheEntry) {
	entry.prev = &c.root
	entry.next = c.root.next
	c.root.next.prev = entry
	c.root.next = entry
}

func (c *ResultCache) moveToFrontLocked(entry *cacheEntry) {
	if c.root.next == entry {
		return
	}

	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.pushFrontLocked(entry)
}

func (c *ResultCache) tagLocked(entry *cacheEntry) {
	for _, tag := range entry.tags {
		set, ok := c.tags[tag]
		if !ok {
			set = make(map[*cacheEntry]struct{})
			c.tags[tag] = set
		}

		set[entry] = struct{}{}
	}
}

func (c *ResultCache) untagLocked(entry *cacheEntry) {
	for _, tag := range entry.tags {
		set := c.tags[tag]
		delete(set, entry)

		if len(set) == 0 {
			delete(c.tags, tag)
		}
	}
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		if tag == "" {
			continue
		}

		if _, ok := seen[tag]; ok {
			continue
		}

		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	return out
}
