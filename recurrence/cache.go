package recurrence

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/samber/mo"
)

// CacheEntry represents a cached occurrence list
type CacheEntry struct {
	Result     []time.Time
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// RecurrenceCache memoizes materialized occurrence lists
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.Mutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before eviction
	CleanupInterval time.Duration // How often to run cleanup; 0 disables the background loop
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewRecurrenceCache creates a new recurrence cache with the given configuration
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	return newRecurrenceCache(config, time.Now)
}

// newRecurrenceCache lets tests drive expiry with a fake clock.
func newRecurrenceCache(config CacheConfig, now func() time.Time) *RecurrenceCache {
	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             now,
	}
	if cache.cleanupInterval > 0 {
		go cache.cleanupLoop()
	}
	return cache
}

// cacheKey hashes everything a Take result depends on.
func cacheKey(operation string, r Rule, zone *time.Location, anchor, after time.Time, count int) string {
	hasher := sha256.New()
	hasher.Write([]byte(operation))
	hasher.Write([]byte(r.String()))
	hasher.Write([]byte(zone.String()))
	hasher.Write([]byte(anchor.UTC().Format(time.RFC3339Nano)))
	hasher.Write([]byte(after.UTC().Format(time.RFC3339Nano)))
	hasher.Write([]byte(strconv.Itoa(count)))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a copy of a cached result if it exists and hasn't expired
func (c *RecurrenceCache) Get(key string) mo.Option[[]time.Time] {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return mo.None[[]time.Time]()
	}

	now := c.now()
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		return mo.None[[]time.Time]()
	}

	entry.AccessedAt = now
	return mo.Some(slices.Clone(entry.Result))
}

// Set stores a copy of result in the cache
func (c *RecurrenceCache) Set(key string, result []time.Time) {
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Result:     slices.Clone(result),
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then the least recently accessed ones
// while over the limit. The caller holds the mutex.
func (c *RecurrenceCache) cleanup() {
	now := c.now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	keyAccessList := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keyAccessList = append(keyAccessList, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	sort.Slice(keyAccessList, func(i, j int) bool {
		return keyAccessList[i].accessedAt.Before(keyAccessList[j].accessedAt)
	})

	entriesToRemove := len(c.entries) - c.maxEntries
	for i := 0; i < entriesToRemove; i++ {
		delete(c.entries, keyAccessList[i].key)
	}
}

func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call twice.
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
		c.mutex.Lock()
		c.entries = make(map[string]*CacheEntry)
		c.mutex.Unlock()
	})
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	expired := 0
	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}

// CacheStats provides information about cache occupancy
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
