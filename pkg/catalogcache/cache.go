// Package catalogcache holds a per-project snapshot of the supplier catalog
// so the paid stages do not re-read the full table on every chunk.
package catalogcache

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Loader fetches the supplier catalog for a project on a cache miss
type Loader func(ctx context.Context, projectID string) ([]models.CatalogItem, error)

type entry struct {
	items    []models.CatalogItem
	loadedAt time.Time
}

// Cache is a TTL cache of supplier catalogs keyed by project id
type Cache struct {
	ttl    time.Duration
	loader Loader
	logger ectologger.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a new catalog cache
func New(ttl time.Duration, loader Loader, logger ectologger.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		ttl:     ttl,
		loader:  loader,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Get returns the supplier catalog for a project, loading it on a miss or
// after the TTL has elapsed.
func (c *Cache) Get(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogcache.Cache.Get")
	defer span.End()

	c.mu.RLock()
	e, ok := c.entries[projectID]
	c.mu.RUnlock()

	if ok && time.Since(e.loadedAt) < c.ttl {
		return e.items, nil
	}

	items, err := c.loader(ctx, projectID)
	if err != nil {
		// Serve the stale snapshot rather than failing the chunk
		if ok {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"project_id": projectID,
			}).Warn("Catalog reload failed, serving stale snapshot")
			return e.items, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[projectID] = &entry{items: items, loadedAt: time.Now()}
	c.mu.Unlock()

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"project_id": projectID,
		"items":      len(items),
	}).Debug("Loaded supplier catalog into cache")

	return items, nil
}

// Invalidate drops a project's snapshot, forcing a reload on next access
func (c *Cache) Invalidate(projectID string) {
	c.mu.Lock()
	delete(c.entries, projectID)
	c.mu.Unlock()
}

// Len returns the number of cached projects
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
