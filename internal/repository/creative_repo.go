package repository

import (
	"context"

	"github.com/user/adarchive-ingest/internal/entity"
)

// CreativeRepository stores the single representative media asset per page.
type CreativeRepository interface {
	// Upsert writes the creative for a page, replacing any previous one.
	Upsert(ctx context.Context, c *entity.Creative) error
	// Get returns the stored creative for a page, or nil when none exists.
	Get(ctx context.Context, pageID string) (*entity.Creative, error)
}
