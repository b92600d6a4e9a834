package service

import (
	"context"
	"mime"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/metrics"
)

// URLValidator confirms that a candidate URL currently serves an image.
type URLValidator interface {
	Validate(ctx context.Context, url string) bool
}

// ValidatorConfig holds configuration for the URL validator.
type ValidatorConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// Validator checks candidate URLs with a single HEAD request and no retries.
type Validator struct {
	client *resty.Client
}

// NewValidator creates a new URL validator.
// Parameters:
//   - cfg: request timeout and user agent.
// Returns:
//   - *Validator: validator sharing one HTTP client across calls.
func NewValidator(cfg *ValidatorConfig) *Validator {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Validator{client: client}
}

// Validate reports whether url answers a HEAD request with a 2xx status and an
// image/* Content-Type. Every failure, including timeouts, yields false.
func (v *Validator) Validate(ctx context.Context, url string) bool {
	ok, reason := v.check(ctx, url)
	metrics.RecordValidation(ok)
	if !ok {
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldURL: url,
			"reason":        reason,
		}).Debug("Candidate rejected")
	}
	return ok
}

func (v *Validator) check(ctx context.Context, url string) (bool, string) {
	resp, err := v.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return false, err.Error()
	}
	if !resp.IsSuccess() {
		return false, resp.Status()
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header().Get("Content-Type"))
	if err != nil {
		return false, "missing content type"
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return false, "content type " + mediaType
	}
	return true, ""
}

// Close releases idle connections held by the HTTP client.
func (v *Validator) Close() {
	v.client.GetClient().CloseIdleConnections()
}
