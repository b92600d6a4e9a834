package source

import (
	"context"

	"github.com/timmy/randmeme/internal/domain"
)

// Source defines a ranked listing that yields candidate image posts.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// FetchCandidates returns up to limit posts of the category in listing order.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - category: ranking view to read.
	//   - limit: maximum number of posts to return.
	// Returns:
	//   - []domain.CandidateURL: posts in listing order.
	//   - error: wraps ErrAuth, ErrRateLimited, ErrTransport or ErrMalformedResponse.
	FetchCandidates(ctx context.Context, category domain.Category, limit int) ([]domain.CandidateURL, error)
}
