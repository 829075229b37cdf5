package repository

import (
	"context"
	"errors"

	"github.com/user/adarchive-ingest/internal/entity"
)

// ErrTokensExhausted is the fatal condition raised when an archive call
// cannot proceed because no token in the pool is leasable.
var ErrTokensExhausted = errors.New("archive token pool exhausted")

// ArchiveClient is the paginated transparency-archive API consumed by the
// discovery and enrichment stages.
type ArchiveClient interface {
	// SearchAds fetches a single discovery page of ads matching a keyword
	// in a country. Only a sample is needed to identify pages.
	SearchAds(ctx context.Context, term, country string) ([]entity.ArchiveAd, error)
	// AdsByPage fetches the complete ad set of one page, following
	// pagination until the server reports no further pages.
	AdsByPage(ctx context.Context, pageID, country string) ([]entity.ArchiveAd, error)
}
