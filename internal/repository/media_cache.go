package repository

import (
	"context"
	"time"
)

// MediaCache is a TTL cache of pages whose creative was refreshed recently,
// used to skip re-rendering snapshots on consecutive runs. Best-effort: a
// cache failure must never block extraction.
type MediaCache interface {
	MarkExtracted(ctx context.Context, pageID string, ttl time.Duration) error
	IsRecentlyExtracted(ctx context.Context, pageID string) (bool, error)
}
