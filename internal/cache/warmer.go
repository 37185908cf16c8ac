package cache

import (
	"context"
	"log/slog"
	"time"

	"wawtransit/internal/domain"
	"wawtransit/internal/version"
)

// StopSource is what the warmer needs from the service layer.
type StopSource interface {
	AllStops() ([]domain.Stop, error)
}

// CacheWarmer preloads the payloads worth having hot before the first
// request: the full stop list and the build version.
type CacheWarmer struct {
	cache  *RedisCache
	source StopSource
	ttl    time.Duration
	logger *slog.Logger
}

func NewCacheWarmer(cache *RedisCache, source StopSource, ttl time.Duration, logger *slog.Logger) *CacheWarmer {
	return &CacheWarmer{
		cache:  cache,
		source: source,
		ttl:    ttl,
		logger: logger.With("component", "cache_warmer"),
	}
}

func (w *CacheWarmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("starting cache warming")

	stops, err := w.source.AllStops()
	if err != nil {
		w.logger.Error("failed to load stops for warming", "error", err)
		return err
	}
	if err := w.cache.SetJSONCompressed(ctx, KeyAllStops, stops, w.ttl); err != nil {
		return err
	}

	// Version never changes within a process; no TTL.
	if err := w.cache.SetJSON(ctx, KeyVersion, version.Get(), 0); err != nil {
		return err
	}

	w.logger.Info("cache warming completed",
		"stops", len(stops),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
