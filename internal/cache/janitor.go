package cache

import (
	"context"
	"time"

	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

// Start runs the background eviction loop, removing entries that have not
// been read within TTL. Blocks until ctx is cancelled.
func (c *PhotoCache) Start(ctx context.Context) {
	interval := c.config.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache janitor stopped")
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

// Warm assembles and caches each scene ahead of the first request. Scenes
// that fail to assemble are logged and skipped.
func (c *PhotoCache) Warm(ctx context.Context, scenes ...scene.Config) int {
	start := time.Now()
	var warmed int
	for _, cfg := range scenes {
		select {
		case <-ctx.Done():
			return warmed
		default:
		}

		if _, err := c.GetOrAssemble(ctx, cfg); err != nil {
			c.logger.Warn("cache warmup failed", "key", cfg.Key(), "error", err)
			continue
		}
		warmed++
	}

	c.logger.Info("cache warmup complete",
		"warmed", warmed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return warmed
}
