package repository

import (
	"context"

	"github.com/user/adarchive-ingest/internal/entity"
)

// MediaExtractor renders an ad snapshot URL and extracts its main media
// asset. A ("", "") result without error means the snapshot holds no usable
// media; an error means the extraction itself crashed and counts against the
// page's media retry allowance.
type MediaExtractor interface {
	Extract(ctx context.Context, snapshotURL string) (kind entity.MediaKind, url string, err error)
}
