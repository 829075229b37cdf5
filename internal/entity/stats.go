package entity

// PipelineStats is a point-in-time snapshot of pipeline progress, keyed by
// status value per queue.
type PipelineStats struct {
	Terms          map[string]int64
	PagesAds       map[string]int64
	PagesMedia     map[string]int64
	LeasableTokens int
}
