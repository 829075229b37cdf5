package repository

import (
	"context"

	"github.com/user/adarchive-ingest/internal/entity"
)

// StatsRepository reports pipeline progress for the operational API.
type StatsRepository interface {
	// Snapshot returns the current per-status row counts of every queue
	// plus the number of leasable archive tokens.
	Snapshot(ctx context.Context) (*entity.PipelineStats, error)
}
