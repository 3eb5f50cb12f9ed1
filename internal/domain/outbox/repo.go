package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Append writes a new entry, normally with status PENDING.
	Append(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// UpdateOutcome applies an attempt's result to an existing entry.
	// RetryCount and NextRetryAt are not touched; the scheduler owns those.
	UpdateOutcome(ctx context.Context, id uuid.UUID, out Outcome) error

	// FindDueRetries claims up to limit FAILED entries whose response status
	// still looks retryable, whose retry budget is not exhausted, and whose
	// nextRetryAt has passed, oldest first. Claimed entries are leased so a
	// concurrent scheduler instance cannot double-process them.
	FindDueRetries(ctx context.Context, limit, maxAttempts int) ([]*Entry, error)

	// ScheduleRetry stores the attempt counter and the next due time.
	ScheduleRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time) error

	// PromoteToDeadLetter moves an entry to DLQ with a reason. Terminal.
	PromoteToDeadLetter(ctx context.Context, id uuid.UUID, reason string) error

	// SweepTerminalFailures dead-letters FAILED entries whose response
	// status is non-retryable, so terminally rejected submissions do not
	// linger in FAILED. Returns the number of entries promoted.
	SweepTerminalFailures(ctx context.Context) (int, error)

	// ListDeadLetters returns DLQ entries, newest first.
	ListDeadLetters(ctx context.Context, limit, offset int) ([]*Entry, int, error)

	// Requeue puts a DLQ entry back in the retry queue: status FAILED,
	// retry count reset, immediately due. This is the one place the retry
	// count goes backwards. An operator requeue is an explicit grant of a
	// fresh budget, not an automated retry; the automated paths only ever
	// increment the count.
	Requeue(ctx context.Context, id uuid.UUID) error

	Metrics(ctx context.Context) (*Metrics, error)
}
