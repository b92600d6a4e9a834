// Package imaging re-encodes downloaded images to fit a byte budget.
package imaging

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Config holds configuration for the compression engine.
type Config struct {
	QualityStart int
	QualityStep  int
	Workers      int // Concurrent compressions; <= 0 uses runtime.NumCPU()
}

// Result is the output of one Compress call.
type Result struct {
	Data         []byte
	ContentType  string
	Format       Format
	OriginalSize int
	// Qualities lists the quality passes run after the default encode, in order.
	Qualities []int
}

// Passes returns the number of quality passes that ran.
func (r *Result) Passes() int {
	return len(r.Qualities)
}

// Engine adaptively re-encodes images. It is safe for concurrent use.
type Engine struct {
	cfg        Config
	strategies map[Format]Strategy
	sem        *semaphore.Weighted
}

// NewEngine creates a new compression engine.
// Parameters:
//   - cfg: quality schedule and worker bound.
// Returns:
//   - *Engine: engine with JPEG, PNG and GIF strategies.
func NewEngine(cfg *Config) *Engine {
	c := *cfg
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.QualityStep <= 0 {
		c.QualityStep = 10
	}
	return &Engine{
		cfg:        c,
		strategies: defaultStrategies(),
		sem:        semaphore.NewWeighted(int64(c.Workers)),
	}
}

// Compress encodes data once at default settings and returns it if it fits the
// budget. Otherwise it re-encodes from QualityStart downwards by QualityStep while
// the output is over budget and the quality is above budget.QualityFloor. The last
// encoding is returned even if it is still over budget.
// Parameters:
//   - ctx: request context; cancellation aborts between passes.
//   - data: image bytes as downloaded.
//   - mimeType: declared MIME type, which selects the strategy.
//   - budget: byte ceiling and quality floor.
// Returns:
//   - *Result: encoded bytes and pass history.
//   - error: *domain.UnsupportedMediaTypeError, *domain.DecodeError or a context error.
func (e *Engine) Compress(ctx context.Context, data []byte, mimeType string, budget domain.SizeBudget) (*Result, error) {
	strategy, ok := e.strategies[FormatFromMIME(mimeType)]
	if !ok {
		return nil, &domain.UnsupportedMediaTypeError{MIMEType: mimeType}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for compression worker: %w", err)
	}
	defer e.sem.Release(1)

	start := time.Now()
	enc, err := strategy.Load(data)
	if err != nil {
		return nil, &domain.DecodeError{Err: err}
	}

	out, err := enc.EncodeDefault()
	if err != nil {
		return nil, err
	}

	result := &Result{
		ContentType:  strategy.ContentType(),
		Format:       strategy.Format(),
		OriginalSize: len(data),
	}

	if budget.MaxBytes > 0 {
		for quality := e.cfg.QualityStart; len(out) > budget.MaxBytes && quality > budget.QualityFloor; quality -= e.cfg.QualityStep {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			out, err = enc.EncodeAt(quality)
			if err != nil {
				return nil, err
			}
			result.Qualities = append(result.Qualities, quality)

			logger.With(logger.Fields{
				logger.FieldQuality: quality,
				logger.FieldSize:    len(out),
			}).Debug(ctx, "Compression pass")

			// Further passes would produce identical bytes
			if !strategy.QualityAware() {
				break
			}
		}
	}

	result.Data = out
	metrics.RecordCompression(result.Format.String(), result.Passes())

	entry := logger.With(logger.Fields{
		"format":         result.Format.String(),
		"original_size":  result.OriginalSize,
		logger.FieldSize: len(out),
		"passes":         result.Passes(),
	}).WithDuration(time.Since(start).Milliseconds())
	if budget.MaxBytes > 0 && len(out) > budget.MaxBytes {
		entry.Warn(ctx, "Image still over budget after compression")
	} else {
		entry.Debug(ctx, "Image compressed")
	}

	return result, nil
}
