package domain

import "fmt"

// Category represents one ranking view of a listing.
// Values include CategoryHot, CategoryTop, and CategoryRising.
type Category string

const (
	CategoryHot    Category = "hot"
	CategoryTop    Category = "top"
	CategoryRising Category = "rising"
)

// AllCategories returns every supported category in a stable order.
func AllCategories() []Category {
	return []Category{CategoryHot, CategoryTop, CategoryRising}
}

// ParseCategory converts a raw string into a Category.
// Parameters:
//   - s: category name such as "hot".
// Returns:
//   - Category: parsed category.
//   - error: non-nil if the name is not a known category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryHot, CategoryTop, CategoryRising:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}
