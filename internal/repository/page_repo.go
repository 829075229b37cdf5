package repository

import (
	"context"

	"github.com/user/adarchive-ingest/internal/entity"
)

// PageRepository persists discovered pages. The ads_status and media_status
// columns double as the durable work queues for the enrichment and media
// stages.
type PageRepository interface {
	// UpsertPages inserts-or-merges pages by page_id. New pages start with
	// ads_status pending; re-upserting an existing page never regresses
	// its statuses.
	UpsertPages(ctx context.Context, pages []entity.Page) error
	// KnownPageIDs returns every page_id already stored.
	KnownPageIDs(ctx context.Context) (map[string]struct{}, error)
	// ClaimAdsPending atomically moves up to limit pages with ads_status
	// pending to processing and returns them, skipping rows held by
	// concurrent claimers. Errored pages are not claimable until
	// RequeueErroredAds runs, so the polling loop cannot spin on a page
	// that keeps failing.
	ClaimAdsPending(ctx context.Context, limit int) ([]entity.Page, error)
	// ClaimMediaPending does the same for media_status pending or error,
	// restricted to pages whose enrichment completed. Crashed pages are
	// not claimable.
	ClaimMediaPending(ctx context.Context, limit int) ([]entity.Page, error)
	// RequeueErroredAds returns pages whose enrichment failed to pending,
	// and reports how many were requeued. Called once at run start.
	RequeueErroredAds(ctx context.Context) (int64, error)
	MarkAdsStatus(ctx context.Context, pageID string, status entity.PageStatus) error
	MarkMediaStatus(ctx context.Context, pageID string, status entity.PageStatus) error
	// SetReach stores the recomputed reach aggregates for a page.
	SetReach(ctx context.Context, pageID string, total, active int64) error
	// IncrementMediaRetry bumps the media retry counter, sets media_status
	// to crashed once the counter reaches the ceiling (error below it),
	// and returns the resulting status.
	IncrementMediaRetry(ctx context.Context, pageID string) (entity.PageStatus, error)
	// ResetStuck returns pages stuck in processing (either state machine)
	// to pending and reports how many were reset.
	ResetStuck(ctx context.Context) (int64, error)
}
