// Package outbox is the durable transaction log for NHIE submissions. It is
// both the audit of record (every attempt, success or failure, is recoverable
// from it) and the retry work queue the scheduler drains.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry statuses.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusDLQ     = "DLQ"
)

// Resource types accepted by the exchange.
const (
	ResourcePatient   = "Patient"
	ResourceEncounter = "Encounter"
)

// Entry maps to the nhie_transaction_log table. Request and response bodies
// are stored masked; nothing unmasked is ever persisted.
type Entry struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	CorrelationID      string     `db:"correlation_id" json:"correlation_id"`
	LocalRecordID      uuid.UUID  `db:"local_record_id" json:"local_record_id"`
	ResourceType       string     `db:"resource_type" json:"resource_type"`
	HTTPMethod         string     `db:"http_method" json:"http_method"`
	Endpoint           string     `db:"endpoint" json:"endpoint"`
	MaskedRequestBody  string     `db:"masked_request_body" json:"masked_request_body"`
	MaskedResponseBody *string    `db:"masked_response_body" json:"masked_response_body,omitempty"`
	ResponseStatus     *int       `db:"response_status" json:"response_status,omitempty"`
	RetryCount         int        `db:"retry_count" json:"retry_count"`
	Status             string     `db:"status" json:"status"`
	NextRetryAt        *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
	ExternalResourceID *string    `db:"external_resource_id" json:"external_resource_id,omitempty"`
	ErrorMessage       *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Outcome is the per-attempt result applied to an entry after a submission.
type Outcome struct {
	Status             string
	ResponseStatus     *int
	MaskedResponseBody *string
	ExternalResourceID *string
	ErrorMessage       *string
}

// Metrics summarizes outbox state for dashboards.
type Metrics struct {
	DLQCount           int64          `json:"dlq_count"`
	FailedRetryable    int64          `json:"failed_retryable"`
	SuccessLast24h     int64          `json:"success_last_24h"`
	OldestPendingAgeMS *int64         `json:"oldest_pending_age_ms,omitempty"`
	ByStatus           map[string]int `json:"by_status"`
}
