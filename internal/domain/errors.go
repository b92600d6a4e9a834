package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheEmpty matches any *CacheEmptyError.
	ErrCacheEmpty = errors.New("cache empty")

	// ErrFetchTimeout is returned when an image download exceeds its deadline.
	ErrFetchTimeout = errors.New("image fetch timed out")

	// ErrUnsupportedMediaType matches any *UnsupportedMediaTypeError.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// CacheEmptyError is returned by the selector when the chosen category has no URLs.
type CacheEmptyError struct {
	Category Category
}

func (e *CacheEmptyError) Error() string {
	return fmt.Sprintf("no cached images for category %q", e.Category)
}

// Is makes errors.Is(err, ErrCacheEmpty) succeed.
func (e *CacheEmptyError) Is(target error) bool {
	return target == ErrCacheEmpty
}

// UpstreamFetchError is returned when an image host answers with a non-success
// status. StatusCode is 0 when the request failed before any response arrived.
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream request for %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream returned status %d for %s", e.StatusCode, e.URL)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a downloaded body is not a decodable image.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("failed to decode image: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode image from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedMediaTypeError is returned when no compression strategy exists for a MIME type.
type UnsupportedMediaTypeError struct {
	MIMEType string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("unsupported media type %q", e.MIMEType)
}

// Is makes errors.Is(err, ErrUnsupportedMediaType) succeed.
func (e *UnsupportedMediaTypeError) Is(target error) bool {
	return target == ErrUnsupportedMediaType
}

// IsFetchError reports whether err belongs to the image fetch failure family
// (upstream status, timeout or decode failure).
func IsFetchError(err error) bool {
	if err == nil {
		return false
	}
	var upstream *UpstreamFetchError
	var decode *DecodeError
	return errors.Is(err, ErrFetchTimeout) || errors.As(err, &upstream) || errors.As(err, &decode)
}
