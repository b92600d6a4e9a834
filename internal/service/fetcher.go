package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/metrics"
	_ "golang.org/x/image/webp"
)

// defaultContentType is assumed when an image host omits Content-Type.
const defaultContentType = "image/jpeg"

// FetcherConfig holds configuration for the image fetcher.
type FetcherConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxPixels    int64 // width*height ceiling checked before decoding; <= 0 disables
	UserAgent    string
}

// Fetcher downloads selected images. It never retries; failures go straight to
// the caller and the URL stays in the cache.
type Fetcher struct {
	client    *resty.Client
	maxBody   int64
	maxPixels int64
}

// NewFetcher creates a new image fetcher.
// Parameters:
//   - cfg: download timeout, body limit and user agent.
// Returns:
//   - *Fetcher: fetcher sharing one HTTP client across requests.
func NewFetcher(cfg *FetcherConfig) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Fetcher{client: client, maxBody: cfg.MaxBodyBytes, maxPixels: cfg.MaxPixels}
}

// Fetch downloads url and checks that the body decodes as an image.
// Parameters:
//   - ctx: request context.
//   - url: image URL chosen by the selector.
// Returns:
//   - *domain.FetchResult: body and declared MIME type.
//   - error: *domain.UpstreamFetchError, domain.ErrFetchTimeout or *domain.DecodeError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.FetchResult, error) {
	start := time.Now()

	result, err := f.fetch(ctx, url)
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrFetchTimeout):
		status = "timeout"
	case err != nil && domain.IsFetchError(err):
		var decodeErr *domain.DecodeError
		if errors.As(err, &decodeErr) {
			status = "decode_error"
		} else {
			status = "upstream_error"
		}
	case err != nil:
		status = "error"
	}
	metrics.RecordFetch(status)

	entry := logger.With(logger.Fields{
		logger.FieldURL:    url,
		logger.FieldStatus: status,
	}).WithDuration(time.Since(start).Milliseconds())
	if err != nil {
		entry.Warn(ctx, "Image fetch failed: %v", err)
		return nil, err
	}
	entry.With(logger.Fields{logger.FieldSize: len(result.Data)}).Debug(ctx, "Image fetched")
	return result, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*domain.FetchResult, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFetchTimeout, url)
		}
		return nil, &domain.UpstreamFetchError{URL: url, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return nil, &domain.UpstreamFetchError{URL: url, StatusCode: resp.StatusCode()}
	}

	reader := io.Reader(body)
	if f.maxBody > 0 {
		reader = io.LimitReader(body, f.maxBody+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFetchTimeout, url)
		}
		return nil, &domain.UpstreamFetchError{URL: url, StatusCode: resp.StatusCode(), Err: err}
	}
	if f.maxBody > 0 && int64(len(data)) > f.maxBody {
		return nil, &domain.DecodeError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", f.maxBody)}
	}

	imgCfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.DecodeError{URL: url, Err: err}
	}
	if f.maxPixels > 0 && int64(imgCfg.Width)*int64(imgCfg.Height) > f.maxPixels {
		return nil, &domain.DecodeError{
			URL: url,
			Err: fmt.Errorf("image is %dx%d, over the %d pixel limit", imgCfg.Width, imgCfg.Height, f.maxPixels),
		}
	}

	return &domain.FetchResult{
		URL:         url,
		Data:        data,
		ContentType: declaredType(resp.Header().Get("Content-Type")),
	}, nil
}

// Close releases idle connections held by the HTTP client.
func (f *Fetcher) Close() {
	f.client.GetClient().CloseIdleConnections()
}

func declaredType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" {
		return defaultContentType
	}
	return mediaType
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
