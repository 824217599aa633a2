// Package cache provides an in-memory cache of assembled photographs.
//
// Assembly is deterministic, so a result can be reused for as long as the
// same scene is requested. Entries expire TTL after their last access and a
// background janitor evicts them. Concurrent misses for the same scene are
// collapsed into a single assembly, which runs detached from any one
// caller's context so a departing client cannot fail the others.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sync/singleflight"

	"github.com/dickie-roper/rolling-shutter/internal/metrics"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	TTL             time.Duration // Evict entries unused for this long (default: 10m)
	MaxEntries      int           // Upper bound on cached scenes (default: 64)
	SweepInterval   time.Duration // Janitor period (default: 30s)
	AssemblyTimeout time.Duration // Bound on a shared, detached assembly (default: 2m)
}

// Assembler produces photographs for a scene.
type Assembler interface {
	Assemble(ctx context.Context, cfg scene.Config) (*photo.Result, error)
}

// CacheEntry wraps a result with bookkeeping timestamps.
type CacheEntry struct {
	Result      *photo.Result
	GeneratedAt time.Time
	lastAccess  atomic.Int64 // unix nanos
}

// PhotoCache is an in-memory cache of assembly results keyed by scene.
// Safe for concurrent use by multiple goroutines.
type PhotoCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry

	config    Config
	assembler Assembler
	logger    *slog.Logger
	group     singleflight.Group
	now       func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewPhotoCache creates a new photograph cache.
func NewPhotoCache(config Config, assembler Assembler, logger *slog.Logger) *PhotoCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 64
	}
	if config.AssemblyTimeout <= 0 {
		config.AssemblyTimeout = 2 * time.Minute
	}
	logger.Info("cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
		"sweep_interval_seconds", config.SweepInterval.Seconds(),
		"assembly_timeout_seconds", config.AssemblyTimeout.Seconds(),
	)

	return &PhotoCache{
		entries:   make(map[string]*CacheEntry),
		config:    config,
		assembler: assembler,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the cached result for cfg, or nil if not cached.
func (c *PhotoCache) Get(cfg scene.Config) *photo.Result {
	c.mu.RLock()
	entry, ok := c.entries[cfg.Key()]
	c.mu.RUnlock()

	if ok {
		entry.lastAccess.Store(c.now().UnixNano())
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry.Result
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// GetOrAssemble returns the cached result for cfg, assembling and caching it
// on a miss. Configuration errors are returned unchanged and never cached.
//
// The assembly itself is shared by every concurrent caller for the same
// scene and is bounded by AssemblyTimeout rather than by ctx. Cancelling ctx
// only stops this caller waiting: it returns ctx.Err() while the assembly
// carries on for the remaining callers and still lands in the cache.
func (c *PhotoCache) GetOrAssemble(ctx context.Context, cfg scene.Config) (*photo.Result, error) {
	if res := c.Get(cfg); res != nil {
		return res, nil
	}

	key := cfg.Key()
	ch := c.group.DoChan(key, func() (any, error) {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.AssemblyTimeout)
		defer cancel()

		res, err := c.assembler.Assemble(actx, cfg)
		if err != nil {
			return nil, err
		}
		c.put(key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		c.logger.Debug("caller left shared assembly", "key", key, "error", ctx.Err())
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			c.logger.Debug("cache assembly shared", "key", key)
		}
		return r.Val.(*photo.Result), nil
	}
}

// put stores a result in the cache, evicting the least recently used entry
// when full. Caller must not hold mu.
func (c *PhotoCache) put(key string, res *photo.Result) {
	now := c.now()
	entry := &CacheEntry{
		Result:      res,
		GeneratedAt: now,
	}
	entry.lastAccess.Store(now.UnixNano())

	var evicted int
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxEntries {
		var oldestKey string
		var oldest int64
		for k, e := range c.entries {
			if la := e.lastAccess.Load(); oldestKey == "" || la < oldest {
				oldestKey, oldest = k, la
			}
		}
		delete(c.entries, oldestKey)
		evicted++
	}
	c.entries[key] = entry
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		metrics.AddCacheEvictions(evicted)
	}
	c.updateMetrics()
}

// evictExpired removes entries not accessed within TTL.
func (c *PhotoCache) evictExpired() int {
	if c.config.TTL <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.config.TTL).UnixNano()
	var removed int

	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.lastAccess.Load() < cutoff {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}

	return removed
}

// Stats returns current cache statistics.
func (c *PhotoCache) Stats() CacheStats {
	c.mu.RLock()
	count := len(c.entries)

	var oldest, newest time.Time
	for _, e := range c.entries {
		if oldest.IsZero() || e.GeneratedAt.Before(oldest) {
			oldest = e.GeneratedAt
		}
		if newest.IsZero() || e.GeneratedAt.After(newest) {
			newest = e.GeneratedAt
		}
	}
	c.mu.RUnlock()

	return CacheStats{
		Entries:   count,
		SizeBytes: c.estimateSizeBytes(),
		Oldest:    oldest,
		Newest:    newest,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Entries   int       `json:"entries"`
	SizeBytes int64     `json:"size_bytes"`
	Oldest    time.Time `json:"oldest"`
	Newest    time.Time `json:"newest"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
}

// estimateSizeBytes returns a rough estimate of the cache memory footprint.
func (c *PhotoCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pointSize := int64(unsafe.Sizeof(photo.Point{}))
	var total int64
	for key, entry := range c.entries {
		res := entry.Result
		if res == nil {
			continue
		}
		// Timeline samples: two float64 each.
		total += int64(res.Timeline.Len()) * 16
		for _, s := range res.Series {
			total += int64(len(s.Coordinates)) * 8
		}
		total += int64(res.PointCount()) * pointSize
		total += int64(len(key)) + 64
	}
	return total
}

// updateMetrics publishes current cache size to Prometheus.
func (c *PhotoCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
}
