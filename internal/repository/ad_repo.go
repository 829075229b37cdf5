package repository

import (
	"context"

	"github.com/user/adarchive-ingest/internal/entity"
)

// AdRepository persists the ads fetched for each page.
type AdRepository interface {
	// UpsertAds inserts-or-merges a batch of ads by ad_id.
	UpsertAds(ctx context.Context, ads []entity.Ad) error
	// TopBySnapshotReach returns up to n ads for a page that carry a
	// snapshot URL, ordered by reach descending with ad_id as a
	// deterministic tiebreak.
	TopBySnapshotReach(ctx context.Context, pageID string, n int) ([]entity.Ad, error)
}
