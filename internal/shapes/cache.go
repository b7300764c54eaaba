package shapes

import (
	"context"
	"sync"
	"time"

	"github.com/gumifu/van-bus-cast/models"
)

// CachingFetcher keeps fetched shapes in memory for a TTL.
// Failures are never cached so a transient error is retried on the next request.
type CachingFetcher struct {
	next Fetcher
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[int]cacheEntry
}

type cacheEntry struct {
	features  []models.RouteFeature
	expiresAt time.Time
}

// NewCachingFetcher wraps next with a TTL cache
func NewCachingFetcher(next Fetcher, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]cacheEntry),
	}
}

// FetchShape returns the cached shape or fetches it through next
func (c *CachingFetcher) FetchShape(ctx context.Context, shapeID int) ([]models.RouteFeature, error) {
	c.mu.RLock()
	entry, ok := c.entries[shapeID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.features, nil
	}

	features, err := c.next.FetchShape(ctx, shapeID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[shapeID] = cacheEntry{features: features, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return features, nil
}

// Purge drops expired entries
func (c *CachingFetcher) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached shapes, expired ones included
func (c *CachingFetcher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
