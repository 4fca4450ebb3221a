package maintenance

import (
	"context"

	"echowatch/internal/metrics"
	"echowatch/internal/services/searchcache"
	"echowatch/internal/workers"
)

// Worker periodically purges stale search cache entries so cache statistics
// and keyword enumeration stay bounded.
type Worker struct {
	*workers.BaseWorker

	cache *searchcache.Service
}

// NewWorker creates a new cache cleanup worker
func NewWorker(cache *searchcache.Service, base *workers.BaseWorker) *Worker {
	return &Worker{
		BaseWorker: base,
		cache:      cache,
	}
}

// Run purges entries older than the freshness window
func (w *Worker) Run(ctx context.Context) error {
	purged, err := w.cache.CleanupExpiredCache(ctx)
	if err != nil {
		return err
	}

	if purged > 0 {
		metrics.CacheEntriesPurged.Add(float64(purged))
		w.Log().Info("Cache cleanup complete", "purged", purged)
	}

	return nil
}
