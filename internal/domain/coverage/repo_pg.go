package coverage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) GetBySubject(ctx context.Context, subjectKey string) (*CacheEntry, error) {
	var e CacheEntry
	err := r.pool.QueryRow(ctx, `
		SELECT subject_key, status, payload, cached_at, expires_at
		FROM nhie_coverage_cache WHERE subject_key = $1`, subjectKey,
	).Scan(&e.SubjectKey, &e.Status, &e.Payload, &e.CachedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Upsert(ctx context.Context, e *CacheEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO nhie_coverage_cache (subject_key, status, payload, cached_at, expires_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (subject_key) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			cached_at = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at`,
		e.SubjectKey, e.Status, e.Payload, e.CachedAt, e.ExpiresAt,
	)
	return err
}
