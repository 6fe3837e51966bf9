package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMetricsTTL        = time.Hour
	DefaultMetricsMaxEntries = 10

	// MetricsFileName is the document kept in the cache directory.
	MetricsFileName = "metrics_cache.json"

	keyTimestampLayout = "2006-01-02 15:04"
)

type metricsEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	BaseWeek  string          `json:"base_week"`
	Periods   []string        `json:"periods"`
}

// MetricsCache persists computed results in a single JSON document. The
// read-modify-write cycle is serialized within the process only.
type MetricsCache struct {
	mu         sync.Mutex
	path       string
	ttl        time.Duration
	maxEntries int
	now        Clock
}

// NewMetricsCache stores its document in dir.
func NewMetricsCache(dir string, ttl time.Duration, maxEntries int, now Clock) *MetricsCache {
	if ttl <= 0 {
		ttl = DefaultMetricsTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMetricsMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &MetricsCache{
		path:       filepath.Join(dir, MetricsFileName),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        now,
	}
}

// Path is the location of the cache document.
func (c *MetricsCache) Path() string { return c.path }

// Key hashes the base week, the sorted periods and a minute-granularity timestamp.
func Key(baseWeek string, periods []string, at time.Time) string {
	payload, _ := json.Marshal(struct {
		BaseWeek  string   `json:"base_week"`
		Periods   []string `json:"periods"`
		Timestamp string   `json:"timestamp"`
	}{baseWeek, sortedCopy(periods), at.Format(keyTimestampLayout)})
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// Get decodes the newest fresh entry for (baseWeek, periods) into dest.
// Any read or decode problem is a miss.
func (c *MetricsCache) Get(baseWeek string, periods []string, dest any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	want := sortedCopy(periods)
	now := c.now()

	var best *metricsEntry
	for _, e := range entries {
		if e.BaseWeek != baseWeek || !slices.Equal(e.Periods, want) {
			continue
		}
		if now.Sub(e.Timestamp) >= c.ttl {
			continue
		}
		if best == nil || e.Timestamp.After(best.Timestamp) {
			best = e
		}
	}
	if best == nil {
		return false
	}
	if err := json.Unmarshal(best.Data, dest); err != nil {
		log.Warn().Err(err).Str("baseWeek", baseWeek).Msg("Discarding undecodable metrics cache entry")
		return false
	}
	log.Debug().Str("baseWeek", baseWeek).Strs("periods", want).Msg("Metrics cache hit")
	return true
}

// Set stores data, drops expired entries and keeps the newest maxEntries.
// Failures are logged and swallowed.
func (c *MetricsCache) Set(baseWeek string, periods []string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Str("baseWeek", baseWeek).Msg("Failed to encode metrics for cache")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entries := c.load()
	entries[Key(baseWeek, periods, now)] = &metricsEntry{
		Data:      raw,
		Timestamp: now,
		BaseWeek:  baseWeek,
		Periods:   sortedCopy(periods),
	}
	for k, e := range entries {
		if now.Sub(e.Timestamp) >= c.ttl {
			delete(entries, k)
		}
	}
	c.evict(entries)

	if err := c.save(entries); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("Failed to write metrics cache")
	}
}

// Invalidate removes every entry for baseWeek.
func (c *MetricsCache) Invalidate(baseWeek string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	removed := 0
	for k, e := range entries {
		if e.BaseWeek == baseWeek {
			delete(entries, k)
			removed++
		}
	}
	if removed == 0 {
		return
	}
	if err := c.save(entries); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("Failed to write metrics cache")
		return
	}
	log.Info().Str("baseWeek", baseWeek).Int("removed", removed).Msg("Metrics cache invalidated")
}

// Clear deletes the cache document.
func (c *MetricsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", c.path).Msg("Failed to remove metrics cache")
		return
	}
	log.Info().Str("path", c.path).Msg("Metrics cache cleared")
}

// Len counts stored entries, fresh or not.
func (c *MetricsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.load())
}

func (c *MetricsCache) evict(entries map[string]*metricsEntry) {
	if len(entries) <= c.maxEntries {
		return
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return entries[keys[i]].Timestamp.After(entries[keys[j]].Timestamp)
	})
	for _, k := range keys[c.maxEntries:] {
		delete(entries, k)
	}
}

func (c *MetricsCache) load() map[string]*metricsEntry {
	entries := make(map[string]*metricsEntry)
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", c.path).Msg("Failed to read metrics cache")
		}
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("Ignoring corrupt metrics cache")
		return make(map[string]*metricsEntry)
	}
	for k, e := range entries {
		if e == nil {
			delete(entries, k)
		}
	}
	return entries
}

func (c *MetricsCache) save(entries map[string]*metricsEntry) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	// Atomic rename
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
