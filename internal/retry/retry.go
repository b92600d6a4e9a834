// Package retry implements a bounded retry policy with uniform jittered waits.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/timmy/randmeme/internal/logger"
)

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Policy describes how an operation is retried: at most MaxAttempts calls,
// separated by a wait drawn uniformly from [0, JitterUnit).
type Policy struct {
	MaxAttempts int
	JitterUnit  time.Duration
	Retryable   Classifier

	// jitter returns a value in [0, 1); replaced in tests.
	jitter func() float64
}

// NewPolicy creates a Policy.
// Parameters:
//   - maxAttempts: total attempts including the first; values below 1 become 1.
//   - jitterUnit: upper bound of the wait between attempts.
//   - retryable: classifier; nil retries every error.
// Returns:
//   - *Policy: configured policy.
func NewPolicy(maxAttempts int, jitterUnit time.Duration, retryable Classifier) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		JitterUnit:  jitterUnit,
		Retryable:   retryable,
		jitter:      rand.Float64,
	}
}

// Backoff returns the wait before the next attempt.
func (p *Policy) Backoff() time.Duration {
	jitter := p.jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return time.Duration(jitter() * float64(p.JitterUnit))
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts are
// exhausted or ctx is cancelled. The last operation error is wrapped in the result.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.With(logger.Fields{logger.FieldAttempt: attempt}).Info(ctx, "Operation succeeded after retry")
			}
			return nil
		}

		retryable := p.Retryable == nil || p.Retryable(lastErr)
		log := logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldAttempt: attempt,
			"max_attempts":      p.MaxAttempts,
			"retryable":         retryable,
		}).WithError(lastErr)

		if !retryable {
			log.Warn("Operation failed with non-retryable error")
			return lastErr
		}
		if attempt == p.MaxAttempts {
			log.Warn("Operation failed, attempts exhausted")
			break
		}

		delay := p.Backoff()
		log.WithField("retry_delay_ms", delay.Milliseconds()).Info("Operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
