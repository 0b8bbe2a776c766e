package newsintel

import (
	"context"

	"github.com/dsa-core/dsa-core/internal/model"
)

// Provider searches a single upstream news/search API for a query and
// returns raw items, unranked and undeduped; the Service is responsible
// for fingerprinting, ranking, and truncation across providers.
type Provider interface {
	ID() string
	Search(ctx context.Context, query string, maxAgeDays int) ([]model.NewsItem, error)
}

// rateLimitedErr marks a provider response as a 429 so the Service can
// cool the key down without treating it as a hard failure.
type rateLimitedErr struct{ msg string }

func (e *rateLimitedErr) Error() string { return e.msg }

func newRateLimited(msg string) error { return &rateLimitedErr{msg: msg} }

func isRateLimited(err error) bool {
	_, ok := err.(*rateLimitedErr)
	return ok
}
