package coverage

import "context"

type Repository interface {
	// GetBySubject returns the cached entry or nil when none exists.
	GetBySubject(ctx context.Context, subjectKey string) (*CacheEntry, error)
	// Upsert writes or overwrites the entry for its subject key.
	Upsert(ctx context.Context, e *CacheEntry) error
}
