package entity

import "time"

// TermStatus tracks a search term through the discovery stage.
type TermStatus string

const (
	TermPending    TermStatus = "pending"
	TermProcessing TermStatus = "processing"
	TermError      TermStatus = "error"
	TermCompleted  TermStatus = "completed"
)

// SearchTerm mirrors the `search_terms` PostgreSQL table schema.
// Terms are seeded out-of-band; the pipeline only advances their status.
type SearchTerm struct {
	ID                int64
	Text              string
	Country           string
	MinAdCreationTime *time.Time
	Status            TermStatus
}
