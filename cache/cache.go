package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/partfit/models"
)

// entry holds a cached specification table with its creation timestamp.
type entry struct {
	records   []models.MeasurementRecord
	createdAt time.Time
}

// Cache is a simple in-memory cache of normalized specification tables.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a new Cache. A background goroutine evicts entries older
// than maxAge every five minutes until Close is called.
func New(maxEntries int, maxAge time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Key generates a cache key from an info page URL.
func Key(infoURL string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(infoURL)))
	return hex.EncodeToString(h[:])
}

// Get retrieves cached records if they exist and are younger than maxAge.
// Returns the records and whether it was a cache hit.
func (c *Cache) Get(key string) ([]models.MeasurementRecord, bool) {
	if c.maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.maxAge {
		return nil, false
	}

	out := make([]models.MeasurementRecord, len(e.records))
	copy(out, e.records)
	return out, true
}

// Set stores records in the cache. If the cache is at capacity, a random
// entry is evicted to make room.
func (c *Cache) Set(key string, records []models.MeasurementRecord) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	stored := make([]models.MeasurementRecord, len(records))
	copy(stored, records)
	c.store[key] = &entry{
		records:   stored,
		createdAt: c.now(),
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.maxAge)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}
