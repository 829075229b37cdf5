package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MediaCacheImpl is the Redis-backed TTL cache of pages whose creative was
// extracted recently, used to skip re-rendering snapshots across runs.
type MediaCacheImpl struct {
	client *redis.Client
}

// NewMediaCache creates a new instance of MediaCacheImpl.
func NewMediaCache(client *redis.Client) *MediaCacheImpl {
	return &MediaCacheImpl{client: client}
}

func key(pageID string) string {
	return fmt.Sprintf("media_extracted:%s", pageID)
}

// MarkExtracted records that a page's creative was just refreshed.
func (c *MediaCacheImpl) MarkExtracted(ctx context.Context, pageID string, ttl time.Duration) error {
	return c.client.Set(ctx, key(pageID), "1", ttl).Err()
}

// IsRecentlyExtracted checks whether the page's creative is still fresh.
func (c *MediaCacheImpl) IsRecentlyExtracted(ctx context.Context, pageID string) (bool, error) {
	n, err := c.client.Exists(ctx, key(pageID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
