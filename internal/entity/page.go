package entity

// PageStatus is a stage state shared by the two independent page state
// machines (ads enrichment and media extraction). "crashed" is only ever
// reached by media extraction after the retry ceiling.
type PageStatus string

const (
	StatusPending    PageStatus = "pending"
	StatusProcessing PageStatus = "processing"
	StatusCompleted  PageStatus = "completed"
	StatusNotFound   PageStatus = "not_found"
	StatusError      PageStatus = "error"
	StatusCrashed    PageStatus = "crashed"
)

// MediaRetryCeiling is the number of recorded extraction failures after
// which a page's media_status becomes crashed and requires operator reset.
const MediaRetryCeiling = 3

// Page mirrors the `pages` PostgreSQL table schema. A page is a discovered
// advertiser account that owns many ads.
type Page struct {
	PageID           string
	Name             string
	Country          string
	TotalReach       int64
	ActiveTotalReach int64
	AdsStatus        PageStatus
	MediaStatus      PageStatus
	MediaRetryCount  int
}
