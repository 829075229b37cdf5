package repository

import (
	"context"

	"github.com/user/adarchive-ingest/internal/entity"
)

// TermRepository is the durable queue of search terms driving discovery.
type TermRepository interface {
	// ClaimPending atomically moves up to limit terms in status pending or
	// error to processing and returns them. Rows locked by a concurrent
	// claimer are skipped, not waited on. limit <= 0 means no bound.
	ClaimPending(ctx context.Context, limit int) ([]entity.SearchTerm, error)
	// MarkStatus advances a single term's status.
	MarkStatus(ctx context.Context, id int64, status entity.TermStatus) error
	// ResetStuck returns terms left in processing by a crashed run to
	// pending, and reports how many were reset.
	ResetStuck(ctx context.Context) (int64, error)
}
