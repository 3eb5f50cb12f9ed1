package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// claimLease is how far a claimed entry's nextRetryAt is pushed while it is
// being processed. A crashed worker's claim expires after this interval and
// the entry becomes due again.
const claimLease = 5 * time.Minute

const entryCols = `id, correlation_id, local_record_id, resource_type, http_method, endpoint,
	masked_request_body, masked_response_body, response_status, retry_count,
	status, next_retry_at, external_resource_id, error_message, created_at, updated_at`

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO nhie_transaction_log (
			id, correlation_id, local_record_id, resource_type, http_method, endpoint,
			masked_request_body, status, retry_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.CorrelationID, e.LocalRecordID, e.ResourceType, e.HTTPMethod, e.Endpoint,
		e.MaskedRequestBody, e.Status, e.RetryCount,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryCols+` FROM nhie_transaction_log WHERE id = $1`, id))
}

func (r *repoPG) UpdateOutcome(ctx context.Context, id uuid.UUID, out Outcome) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE nhie_transaction_log SET
			status=$2, response_status=$3, masked_response_body=$4,
			external_resource_id=COALESCE($5, external_resource_id),
			error_message=$6, updated_at=NOW()
		WHERE id = $1`,
		id, out.Status, out.ResponseStatus, out.MaskedResponseBody,
		out.ExternalResourceID, out.ErrorMessage,
	)
	return err
}

func (r *repoPG) FindDueRetries(ctx context.Context, limit, maxAttempts int) ([]*Entry, error) {
	// Single-statement claim: the SKIP LOCKED subquery keeps two concurrent
	// schedulers from selecting the same rows, and pushing next_retry_at
	// forward leases each claimed row for the processing window.
	rows, err := r.pool.Query(ctx, `
		UPDATE nhie_transaction_log SET next_retry_at = NOW() + make_interval(secs => $3)
		WHERE id IN (
			SELECT id FROM nhie_transaction_log
			WHERE status = $1
			  AND (response_status IS NULL
			       OR response_status IN (401, 429)
			       OR response_status >= 500)
			  AND retry_count < $2
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+entryCols,
		StatusFailed, maxAttempts, claimLease.Seconds(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repoPG) ScheduleRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE nhie_transaction_log SET retry_count=$2, next_retry_at=$3, status=$4, updated_at=NOW()
		WHERE id = $1`,
		id, retryCount, nextRetryAt, StatusFailed,
	)
	return err
}

func (r *repoPG) PromoteToDeadLetter(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE nhie_transaction_log SET status=$2, error_message=$3, next_retry_at=NULL, updated_at=NOW()
		WHERE id = $1`,
		id, StatusDLQ, reason,
	)
	return err
}

func (r *repoPG) SweepTerminalFailures(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE nhie_transaction_log SET
			status = $2,
			error_message = COALESCE(error_message, 'non-retryable response status ' || response_status),
			next_retry_at = NULL,
			updated_at = NOW()
		WHERE status = $1
		  AND response_status IS NOT NULL
		  AND response_status NOT IN (401, 429)
		  AND response_status < 500`,
		StatusFailed, StatusDLQ,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) ListDeadLetters(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM nhie_transaction_log WHERE status = $1`, StatusDLQ).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryCols+` FROM nhie_transaction_log
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`, StatusDLQ, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repoPG) Requeue(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE nhie_transaction_log SET status=$2, retry_count=0, next_retry_at=NOW(), error_message=NULL, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusFailed, StatusDLQ,
	)
	return err
}

func (r *repoPG) Metrics(ctx context.Context) (*Metrics, error) {
	m := &Metrics{ByStatus: map[string]int{}}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM nhie_transaction_log GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		m.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2
				AND (response_status IS NULL OR response_status IN (401, 429) OR response_status >= 500)),
			COUNT(*) FILTER (WHERE status = $3 AND updated_at > NOW() - INTERVAL '24 hours')
		FROM nhie_transaction_log`,
		StatusDLQ, StatusFailed, StatusSuccess,
	).Scan(&m.DLQCount, &m.FailedRetryable, &m.SuccessLast24h)
	if err != nil {
		return nil, err
	}

	var oldest *time.Time
	err = r.pool.QueryRow(ctx, `
		SELECT MIN(created_at) FROM nhie_transaction_log WHERE status = $1`, StatusPending,
	).Scan(&oldest)
	if err != nil {
		return nil, err
	}
	if oldest != nil {
		age := time.Since(*oldest).Milliseconds()
		m.OldestPendingAgeMS = &age
	}
	return m, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.CorrelationID, &e.LocalRecordID, &e.ResourceType, &e.HTTPMethod, &e.Endpoint,
		&e.MaskedRequestBody, &e.MaskedResponseBody, &e.ResponseStatus, &e.RetryCount,
		&e.Status, &e.NextRetryAt, &e.ExternalResourceID, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
