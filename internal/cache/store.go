package cache

import (
	"fmt"

	"github.com/timmy/randmeme/internal/domain"
)

// Store owns one CategoryCache per category. The category map is built once
// and never modified, so lookups are safe without locking.
type Store struct {
	caches     map[domain.Category]*CategoryCache
	categories []domain.Category
}

// NewStore creates empty caches for every category in domain.AllCategories.
func NewStore(maxEntries int) *Store {
	categories := domain.AllCategories()
	s := &Store{
		caches:     make(map[domain.Category]*CategoryCache, len(categories)),
		categories: categories,
	}
	for _, category := range categories {
		s.caches[category] = NewCategoryCache(category, maxEntries)
	}
	return s
}

// Categories returns the categories held by the store, in stable order.
func (s *Store) Categories() []domain.Category {
	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// Get returns the cache of category.
func (s *Store) Get(category domain.Category) (*CategoryCache, error) {
	c, ok := s.caches[category]
	if !ok {
		return nil, fmt.Errorf("no cache for category %q", category)
	}
	return c, nil
}

// Snapshot returns the current entry of category.
func (s *Store) Snapshot(category domain.Category) (*domain.CacheEntry, error) {
	c, err := s.Get(category)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// Snapshots returns the current entry of every category.
func (s *Store) Snapshots() []*domain.CacheEntry {
	out := make([]*domain.CacheEntry, 0, len(s.categories))
	for _, category := range s.categories {
		out = append(out, s.caches[category].Snapshot())
	}
	return out
}
