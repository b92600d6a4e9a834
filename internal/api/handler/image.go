package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/imaging"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/metrics"
	"github.com/timmy/randmeme/internal/service"
)

// Selector picks the URL to serve.
type Selector interface {
	Select() (service.Selection, error)
}

// Fetcher downloads an image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.FetchResult, error)
}

// Compressor fits an image into a size budget.
type Compressor interface {
	Compress(ctx context.Context, data []byte, mimeType string, budget domain.SizeBudget) (*imaging.Result, error)
}

// ImageHandler serves one random cached image per request.
type ImageHandler struct {
	selector   Selector
	fetcher    Fetcher
	compressor Compressor
	budget     domain.SizeBudget
}

// NewImageHandler creates a new image handler.
// Parameters:
//   - selector: random pick over the category caches.
//   - fetcher: downloads the picked URL.
//   - compressor: re-encodes the download to fit budget.
//   - budget: byte ceiling and quality floor for every response.
// Returns:
//   - *ImageHandler: initialized handler.
func NewImageHandler(selector Selector, fetcher Fetcher, compressor Compressor, budget domain.SizeBudget) *ImageHandler {
	return &ImageHandler{
		selector:   selector,
		fetcher:    fetcher,
		compressor: compressor,
		budget:     budget,
	}
}

// RandomImage handles GET /.
func (h *ImageHandler) RandomImage(c *gin.Context) {
	ctx := c.Request.Context()

	sel, err := h.selector.Select()
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldCategory: sel.Category.String(),
		logger.FieldURL:      sel.URL,
	})

	fetched, err := h.fetcher.Fetch(ctx, sel.URL)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.compressor.Compress(ctx, fetched.Data, fetched.ContentType, h.budget)
	if err != nil {
		h.fail(c, err)
		return
	}

	logger.With(logger.Fields{
		logger.FieldSize: len(result.Data),
		"passes":         result.Passes(),
	}).Info(ctx, "Serving image")

	metrics.RecordServed(http.StatusOK)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func (h *ImageHandler) fail(c *gin.Context, err error) {
	code := StatusFor(err)
	_ = c.Error(err)
	metrics.RecordServed(code)
	c.JSON(code, gin.H{
		"error":      errorMessage(code),
		"request_id": logger.GetRequestID(c.Request.Context()),
	})
}

// StatusFor maps a serving error to its HTTP status.
//   - 503: no image available right now (empty cache, upstream failure, timeout, bad body)
//   - 415: the downloaded format cannot be compressed
//   - 500: anything else
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCacheEmpty), domain.IsFetchError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(code int) string {
	switch code {
	case http.StatusServiceUnavailable:
		return "no image available, try again later"
	case http.StatusUnsupportedMediaType:
		return "image format not supported"
	default:
		return "internal error"
	}
}
