package service

import (
	"math/rand/v2"

	"github.com/timmy/randmeme/internal/cache"
	"github.com/timmy/randmeme/internal/domain"
)

// Selection is the outcome of one Select call.
type Selection struct {
	Category domain.Category
	URL      string
}

// Selector picks a random category and a random URL from its pool.
type Selector struct {
	store *cache.Store
	intn  func(n int) int
}

// NewSelector creates a new selector reading from store.
func NewSelector(store *cache.Store) *Selector {
	return &Selector{store: store, intn: rand.IntN}
}

// Select chooses a category uniformly, then a URL uniformly from its current
// snapshot. An empty pool yields *domain.CacheEmptyError; there is no fallback
// to other categories.
func (s *Selector) Select() (Selection, error) {
	categories := s.store.Categories()
	category := categories[s.intn(len(categories))]

	entry, err := s.store.Snapshot(category)
	if err != nil {
		return Selection{}, err
	}
	if entry.IsEmpty() {
		return Selection{}, &domain.CacheEmptyError{Category: category}
	}

	return Selection{
		Category: category,
		URL:      entry.URLs[s.intn(len(entry.URLs))],
	}, nil
}
