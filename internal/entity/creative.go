package entity

import "time"

// MediaKind distinguishes the two asset types the extractor can yield.
type MediaKind string

const (
	MediaImage MediaKind = "IMAGE"
	MediaVideo MediaKind = "VIDEO"
)

// Creative mirrors the `page_top_creatives` PostgreSQL table schema: the one
// representative media asset kept per page, keyed by page_id.
type Creative struct {
	PageID    string
	AdID      string
	Kind      MediaKind
	URL       string
	Reach     int64
	UpdatedAt time.Time
}
