package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ghanaemr/nhie-sync/internal/platform/mask"
	"github.com/ghanaemr/nhie-sync/internal/platform/nhie"
	"github.com/ghanaemr/nhie-sync/internal/platform/validation"
)

// EligibilityClient is the outbound surface the cache needs.
type EligibilityClient interface {
	CheckEligibility(ctx context.Context, nhisNumber string) (*nhie.Outcome, error)
}

// ValidationError reports a malformed NHIS membership number. Returned
// before any cache or network access.
type ValidationError struct {
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid NHIS number: %s", mask.Identifier(e.Value))
}

type Service struct {
	repo   Repository
	client EligibilityClient
	logger zerolog.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewService(repo Repository, client EligibilityClient, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		client: client,
		logger: logger,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// SetClock overrides the clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetTTL overrides the cache lifetime. Non-positive values are ignored.
func (s *Service) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// CheckCoverage answers whether the NHIS membership is active. Cached
// verdicts are served until they expire; forceRefresh always consults the
// exchange and rewrites the cache. A transport or exchange failure degrades
// to status error without raising and without writing the cache.
func (s *Service) CheckCoverage(ctx context.Context, nhisNumber string, forceRefresh bool) (*Result, error) {
	normalized, ok := validation.NormalizeNHIS(nhisNumber)
	if !ok || normalized == "" {
		return nil, &ValidationError{Value: nhisNumber}
	}

	now := s.now()

	if !forceRefresh {
		entry, err := s.repo.GetBySubject(ctx, normalized)
		if err != nil {
			s.logger.Error().Err(err).Msg("coverage cache read failed")
		} else if entry != nil && entry.ExpiresAt.After(now) {
			s.logger.Debug().
				Str("subject", mask.Identifier(normalized)).
				Str("status", entry.Status).
				Msg("coverage served from cache")
			return &Result{
				SubjectKey: normalized,
				Status:     entry.Status,
				Payload:    entry.Payload,
				FromCache:  true,
				CheckedAt:  entry.CachedAt,
			}, nil
		}
	}

	out, err := s.client.CheckEligibility(ctx, normalized)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("subject", mask.Identifier(normalized)).
			Msg("eligibility check unreachable, degrading to error status")
		return &Result{SubjectKey: normalized, Status: StatusError, CheckedAt: now}, nil
	}

	if !out.Success {
		s.logger.Warn().
			Int("status", out.StatusCode).
			Str("subject", mask.Identifier(normalized)).
			Msg("eligibility check rejected, degrading to error status")
		return &Result{SubjectKey: normalized, Status: StatusError, CheckedAt: now}, nil
	}

	status := classifyBundle(out.Body)
	payload := out.Body
	if status == StatusError {
		// Unparseable success body. Never cache an error verdict.
		s.logger.Warn().
			Str("subject", mask.Identifier(normalized)).
			Msg("eligibility response unparseable, degrading to error status")
		return &Result{SubjectKey: normalized, Status: StatusError, CheckedAt: now}, nil
	}

	entry := &CacheEntry{
		SubjectKey: normalized,
		Status:     status,
		Payload:    &payload,
		CachedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.logger.Error().Err(err).Msg("coverage cache write failed")
	}

	s.logger.Info().
		Str("subject", mask.Identifier(normalized)).
		Str("status", status).
		Msg("coverage refreshed from NHIE")
	return &Result{
		SubjectKey: normalized,
		Status:     status,
		Payload:    &payload,
		CheckedAt:  now,
	}, nil
}

// classifyBundle reads the searchset returned by the Coverage query. A
// non-empty bundle means the membership is known to the exchange.
func classifyBundle(body string) string {
	var bundle struct {
		Total *int `json:"total"`
		Entry []struct {
			Resource struct {
				Status string `json:"status"`
			} `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal([]byte(body), &bundle); err != nil {
		return StatusError
	}

	if bundle.Total != nil && *bundle.Total == 0 {
		return StatusNotFound
	}
	if len(bundle.Entry) > 0 {
		if st := bundle.Entry[0].Resource.Status; st != "" && st != "active" {
			return StatusNotFound
		}
		return StatusActive
	}
	if bundle.Total != nil && *bundle.Total > 0 {
		return StatusActive
	}
	return StatusNotFound
}
