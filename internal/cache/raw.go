package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

const (
	// DefaultRawMaxAge applies where callers do not choose an age.
	DefaultRawMaxAge = 24 * time.Hour
	// MetricsRawMaxAge is the age used when raw data backs metric requests.
	MetricsRawMaxAge = 2 * time.Hour
)

type rawEntry[T any] struct {
	value    T
	storedAt time.Time
}

// RawCache keeps loaded bundles in memory, keyed by source directory.
type RawCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]rawEntry[T]
	maxAge  time.Duration
	now     Clock
}

// NewRawCache creates a cache whose entries expire after maxAge.
func NewRawCache[T any](maxAge time.Duration, now Clock) *RawCache[T] {
	if maxAge <= 0 {
		maxAge = DefaultRawMaxAge
	}
	if now == nil {
		now = time.Now
	}
	return &RawCache[T]{
		entries: make(map[string]rawEntry[T]),
		maxAge:  maxAge,
		now:     now,
	}
}

// Get returns a fresh entry. Expired entries are evicted and reported as a miss.
func (c *RawCache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if age := c.now().Sub(e.storedAt); age >= c.maxAge {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		log.Debug().Str("key", key).Dur("age", age).Msg("Raw cache entry expired")
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *RawCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rawEntry[T]{value: value, storedAt: c.now()}
}

// Clear drops every entry.
func (c *RawCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]rawEntry[T])
	log.Info().Int("entries", n).Msg("Raw data cache cleared")
}

// Len reports the number of stored entries, fresh or not.
func (c *RawCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
