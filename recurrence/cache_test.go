package recurrence

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is advanced by hand so TTL tests do not sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRecurrenceCache_BasicOperations(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 1 * time.Minute,
	})
	defer cache.Close()

	anchor := spTime(2024, time.January, 1, 9, 0)
	key := cacheKey("take", NewRule(Daily).EndsAfter(5), DefaultZone, anchor, anchor, 5)

	// Cache miss first
	if cache.Get(key).IsPresent() {
		t.Error("Expected cache miss, got hit")
	}

	want := []time.Time{anchor.AddDate(0, 0, 1), anchor.AddDate(0, 0, 2)}
	cache.Set(key, want)

	result, found := cache.Get(key).Get()
	if !found {
		t.Fatal("Expected cache hit, got miss")
	}
	if len(result) != 2 || !result[0].Equal(want[0]) || !result[1].Equal(want[1]) {
		t.Errorf("Expected %v, got %v", want, result)
	}

	// Callers cannot reach into the cached slice
	result[0] = time.Time{}
	again := cache.Get(key).MustGet()
	if again[0].IsZero() {
		t.Error("Cached result was modified through a returned slice")
	}
}

func TestRecurrenceCache_KeyDependsOnInputs(t *testing.T) {
	anchor := spTime(2024, time.January, 1, 9, 0)
	rule := NewRule(Weekly).WithDaysOfWeek(time.Monday)
	base := cacheKey("take", rule, DefaultZone, anchor, anchor, 5)

	variants := map[string]string{
		"rule":   cacheKey("take", rule.EndsAfter(2), DefaultZone, anchor, anchor, 5),
		"zone":   cacheKey("take", rule, time.UTC, anchor, anchor, 5),
		"anchor": cacheKey("take", rule, DefaultZone, anchor.Add(time.Minute), anchor, 5),
		"after":  cacheKey("take", rule, DefaultZone, anchor, anchor.Add(time.Minute), 5),
		"count":  cacheKey("take", rule, DefaultZone, anchor, anchor, 6),
	}
	for name, key := range variants {
		if key == base {
			t.Errorf("changing %s should change the cache key", name)
		}
	}

	if base != cacheKey("take", rule, DefaultZone, anchor.UTC(), anchor, 5) {
		t.Error("the same instant in another location should hit the same key")
	}
}

func TestRecurrenceCache_TTLExpiration(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newRecurrenceCache(CacheConfig{
		TTL:        time.Minute,
		MaxEntries: 100,
	}, clock.Now)
	defer cache.Close()

	cache.Set("key", []time.Time{clock.Now()})
	if !cache.Get("key").IsPresent() {
		t.Fatal("Expected cache hit before TTL")
	}

	clock.Advance(59 * time.Second)
	if !cache.Get("key").IsPresent() {
		t.Error("Expected cache hit just before TTL")
	}

	clock.Advance(2 * time.Second)
	if stats := cache.Stats(); stats.ExpiredEntries != 1 {
		t.Errorf("Expected 1 expired entry, got %d", stats.ExpiredEntries)
	}
	if cache.Get("key").IsPresent() {
		t.Error("Expected cache miss after TTL expiration")
	}
	if stats := cache.Stats(); stats.TotalEntries != 0 {
		t.Errorf("Expected expired entry to be dropped on read, got %d entries", stats.TotalEntries)
	}
}

func TestRecurrenceCache_MaxEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newRecurrenceCache(CacheConfig{
		TTL:        time.Hour,
		MaxEntries: 3,
	}, clock.Now)
	defer cache.Close()

	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), nil)
		clock.Advance(time.Second)
	}

	// Touch the oldest entry so key-1 becomes the least recently used
	cache.Get("key-0")
	clock.Advance(time.Second)

	cache.Set("key-3", nil)

	if stats := cache.Stats(); stats.TotalEntries != 3 {
		t.Errorf("Expected 3 entries, got %d", stats.TotalEntries)
	}
	if cache.Get("key-1").IsPresent() {
		t.Error("Expected key-1 to be evicted")
	}
	for _, key := range []string{"key-0", "key-2", "key-3"} {
		if !cache.Get(key).IsPresent() {
			t.Errorf("Expected %s to survive eviction", key)
		}
	}
}

func TestRecurrenceCache_ConcurrentAccess(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             time.Minute,
		MaxEntries:      50,
		CleanupInterval: 10 * time.Millisecond,
	})
	defer cache.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d-%d", g, i%20)
				cache.Set(key, []time.Time{time.Unix(int64(i), 0)})
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if stats := cache.Stats(); stats.TotalEntries > 50 {
		t.Errorf("Expected at most 50 entries, got %d", stats.TotalEntries)
	}
}

func TestRecurrenceCache_CloseTwice(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	cache.Set("key", nil)
	cache.Close()
	cache.Close()

	if stats := cache.Stats(); stats.TotalEntries != 0 {
		t.Errorf("Expected empty cache after Close, got %d entries", stats.TotalEntries)
	}
}
