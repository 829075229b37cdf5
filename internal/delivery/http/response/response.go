package response

// HealthResponse reports process liveness and backing-store reachability.
type HealthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
}

// StatusResponse is a DTO for pipeline progress, mirroring
// entity.PipelineStats.
type StatusResponse struct {
	Terms          map[string]int64 `json:"terms"`
	PagesAds       map[string]int64 `json:"pages_ads"`
	PagesMedia     map[string]int64 `json:"pages_media"`
	LeasableTokens int              `json:"leasable_tokens"`
}
