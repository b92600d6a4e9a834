// Package cache holds the validated URL pool of each listing category.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/timmy/randmeme/internal/domain"
)

// CategoryCache publishes the URL pool of one category. Entries are immutable;
// Replace swaps in a new entry so readers see either the old or the new pool.
type CategoryCache struct {
	category   domain.Category
	maxEntries int
	entry      atomic.Pointer[domain.CacheEntry]
}

// NewCategoryCache creates an empty cache holding at most maxEntries URLs.
func NewCategoryCache(category domain.Category, maxEntries int) *CategoryCache {
	c := &CategoryCache{category: category, maxEntries: maxEntries}
	c.entry.Store(&domain.CacheEntry{Category: category, URLs: []string{}})
	return c
}

// Category returns the category this cache serves.
func (c *CategoryCache) Category() domain.Category {
	return c.category
}

// Snapshot returns the current entry. It never returns nil and the returned
// entry must not be modified.
func (c *CategoryCache) Snapshot() *domain.CacheEntry {
	return c.entry.Load()
}

// Replace publishes a copy of urls, truncated to the cache capacity.
// Parameters:
//   - urls: validated URLs in listing order; may be empty.
//   - refreshedAt: time the pool was built.
// Returns:
//   - *domain.CacheEntry: the entry now visible to readers.
func (c *CategoryCache) Replace(urls []string, refreshedAt time.Time) *domain.CacheEntry {
	n := len(urls)
	if c.maxEntries > 0 && n > c.maxEntries {
		n = c.maxEntries
	}
	pool := make([]string, n)
	copy(pool, urls[:n])

	entry := &domain.CacheEntry{
		Category:    c.category,
		URLs:        pool,
		RefreshedAt: refreshedAt,
	}
	c.entry.Store(entry)
	return entry
}
