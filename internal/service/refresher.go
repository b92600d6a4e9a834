package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/randmeme/internal/cache"
	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/metrics"
	"github.com/timmy/randmeme/internal/retry"
	"github.com/timmy/randmeme/internal/source"
	"golang.org/x/sync/errgroup"
)

// RefresherConfig holds configuration for the cache refresher.
type RefresherConfig struct {
	CandidateLimit   int           // N: listing posts requested per category
	MaxEntries       int           // M: validated URLs kept per category
	Interval         time.Duration // T: pause between cycles
	ValidatorWorkers int
}

// Refresher repopulates every category cache from the content source on a fixed
// interval. It is the only writer of the caches in its store.
type Refresher struct {
	source    source.Source
	validator URLValidator
	store     *cache.Store
	policy    *retry.Policy
	cfg       RefresherConfig
	now       func() time.Time
}

// NewRefresher creates a new cache refresher.
// Parameters:
//   - src: listing to read candidates from.
//   - validator: reachability check applied to every candidate.
//   - store: caches to publish into.
//   - policy: retry policy for listing calls.
//   - cfg: limits and interval.
// Returns:
//   - *Refresher: refresher ready to Run.
func NewRefresher(
	src source.Source,
	validator URLValidator,
	store *cache.Store,
	policy *retry.Policy,
	cfg *RefresherConfig,
) *Refresher {
	c := *cfg
	if c.ValidatorWorkers <= 0 {
		c.ValidatorWorkers = 1
	}
	return &Refresher{
		source:    src,
		validator: validator,
		store:     store,
		policy:    policy,
		cfg:       c,
		now:       time.Now,
	}
}

// Run refreshes all categories immediately, then again every interval after the
// previous cycle finishes. It returns when ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ctx = logger.SetComponent(ctx, "refresher")
	logger.CtxInfo(ctx, "Cache refresher started: interval=%s", r.cfg.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "Cache refresher stopped")
			return
		case <-timer.C:
		}

		if err := r.RefreshAll(ctx); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Refresh cycle finished with failures")
		}
		timer.Reset(r.cfg.Interval)
	}
}

// RefreshAll refreshes every category concurrently. A failing category keeps its
// previous pool and does not affect the others; the failures are joined in the
// returned error.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	categories := r.store.Categories()
	errs := make([]error, len(categories))

	var g errgroup.Group
	for i, category := range categories {
		g.Go(func() error {
			_, errs[i] = r.RefreshCategory(ctx, category)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// RefreshCategory runs one refresh cycle for category and publishes the result.
// Parameters:
//   - ctx: context for cancellation; a cancelled cycle publishes nothing.
//   - category: category to refresh.
// Returns:
//   - *domain.CacheEntry: the newly published entry.
//   - error: non-nil if the listing could not be read; the cache is left unchanged.
func (r *Refresher) RefreshCategory(ctx context.Context, category domain.Category) (*domain.CacheEntry, error) {
	start := time.Now()
	ctx = logger.SetCategory(ctx, string(category))

	target, err := r.store.Get(category)
	if err != nil {
		return nil, err
	}

	var raw []domain.CandidateURL
	err = r.policy.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		raw, fetchErr = r.source.FetchCandidates(ctx, category, r.cfg.CandidateLimit)
		return fetchErr
	})
	if err != nil {
		metrics.RecordRefresh(string(category), "failed", time.Since(start).Seconds())
		logger.CtxError(ctx, "Listing unavailable, keeping previous pool: %v", err)
		return nil, fmt.Errorf("refresh %s: %w", category, err)
	}

	candidates := filterCandidates(raw)
	valid := r.validateInOrder(ctx, candidates)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh %s: %w", category, err)
	}

	entry := target.Replace(valid, r.now())
	metrics.RecordRefresh(string(category), "ok", time.Since(start).Seconds())
	metrics.SetPoolSize(string(category), entry.Len())

	logger.With(logger.Fields{
		"raw":        len(raw),
		"candidates": len(candidates),
	}).WithCount(entry.Len()).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Category pool refreshed")

	if entry.IsEmpty() {
		logger.CtxWarn(ctx, "Refresh produced an empty pool")
	}
	return entry, nil
}

// filterCandidates drops self-posts, non-image extensions and duplicate URLs,
// keeping listing order.
func filterCandidates(raw []domain.CandidateURL) []domain.CandidateURL {
	seen := make(map[string]struct{}, len(raw))
	out := make([]domain.CandidateURL, 0, len(raw))
	for _, c := range raw {
		if c.IsSelf || !c.HasImageExtension() {
			continue
		}
		if _, dup := seen[c.URL]; dup {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// validateInOrder returns the first MaxEntries candidates that pass validation,
// in listing order. Each window validates only as many candidates as are still
// missing, so the validator sees the same URLs a sequential scan would.
func (r *Refresher) validateInOrder(ctx context.Context, candidates []domain.CandidateURL) []string {
	valid := make([]string, 0, r.cfg.MaxEntries)
	next := 0

	for len(valid) < r.cfg.MaxEntries && next < len(candidates) && ctx.Err() == nil {
		end := min(next+r.cfg.MaxEntries-len(valid), len(candidates))
		window := candidates[next:end]
		passed := make([]bool, len(window))

		var g errgroup.Group
		g.SetLimit(r.cfg.ValidatorWorkers)
		for i, c := range window {
			g.Go(func() error {
				passed[i] = r.validator.Validate(ctx, c.URL)
				return nil
			})
		}
		_ = g.Wait()

		for i, c := range window {
			if passed[i] {
				valid = append(valid, c.URL)
			}
		}
		next = end
	}
	return valid
}
