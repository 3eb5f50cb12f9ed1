// Package coverage answers NHIS eligibility queries through a 24-hour
// cache over the exchange's Coverage endpoint.
package coverage

import "time"

// Coverage statuses.
const (
	StatusActive   = "active"
	StatusNotFound = "not-found"
	StatusError    = "error"
)

// DefaultTTL is how long a verdict is served from cache before the
// exchange is consulted again.
const DefaultTTL = 24 * time.Hour

// CacheEntry maps to the nhie_coverage_cache table. One row per subject,
// overwritten on every refresh; rows are never actively deleted.
type CacheEntry struct {
	SubjectKey string    `db:"subject_key" json:"subject_key"`
	Status     string    `db:"status" json:"status"`
	Payload    *string   `db:"payload" json:"payload,omitempty"`
	CachedAt   time.Time `db:"cached_at" json:"cached_at"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
}

// Result is one eligibility answer.
type Result struct {
	SubjectKey string    `json:"subject_key"`
	Status     string    `json:"status"`
	Payload    *string   `json:"payload,omitempty"`
	FromCache  bool      `json:"from_cache"`
	CheckedAt  time.Time `json:"checked_at"`
}
