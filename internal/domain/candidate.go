package domain

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// MediaKind is the media type a listing declares for a post.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaOther MediaKind = "other"
)

// CandidateURL is an unvalidated post URL discovered from a listing.
type CandidateURL struct {
	URL       string
	Media     MediaKind
	IsSelf    bool
	Title     string // Logging only
	Permalink string // Logging only
}

// acceptedExtensions lists the filename extensions served by the cache.
var acceptedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// HasImageExtension reports whether the URL path ends in an accepted image extension.
// Query strings and fragments are ignored.
func (c CandidateURL) HasImageExtension() bool {
	u, err := url.Parse(c.URL)
	if err != nil {
		return false
	}
	return acceptedExtensions[strings.ToLower(path.Ext(u.Path))]
}

// CacheEntry is the published, immutable pool of validated URLs for one category.
type CacheEntry struct {
	Category    Category
	URLs        []string
	RefreshedAt time.Time
}

// Len returns the number of URLs in the pool.
func (e *CacheEntry) Len() int {
	if e == nil {
		return 0
	}
	return len(e.URLs)
}

// IsEmpty reports whether the pool holds no URLs.
func (e *CacheEntry) IsEmpty() bool {
	return e.Len() == 0
}

// SizeBudget is the request-scoped compression target.
type SizeBudget struct {
	MaxBytes     int
	QualityFloor int
}

// FetchResult holds a downloaded image and its declared MIME type.
type FetchResult struct {
	URL         string
	Data        []byte
	ContentType string
}
