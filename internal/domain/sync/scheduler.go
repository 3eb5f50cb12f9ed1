package sync

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ghanaemr/nhie-sync/internal/domain/outbox"
)

// RetryConfig is the scheduler's externally configured behavior.
type RetryConfig struct {
	// Enabled is the kill switch. When off, ticks are no-ops.
	Enabled      bool
	TickInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	InitialDelay time.Duration
	GrowthFactor float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the standard schedule: 5s, 30s, 3m, 18m, then
// capped at 1h, for up to 8 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:      true,
		TickInterval: 60 * time.Second,
		BatchSize:    10,
		MaxAttempts:  8,
		InitialDelay: 5 * time.Second,
		GrowthFactor: 6.0,
		MaxDelay:     time.Hour,
	}
}

// Scheduler drains due FAILED entries from the transaction log and re-drives
// the orchestrator for each. A single bad entry never stops the batch.
type Scheduler struct {
	svc    *Service
	txlog  outbox.Repository
	cfg    RetryConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewScheduler(svc *Service, txlog outbox.Repository, cfg RetryConfig, logger zerolog.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 5 * time.Second
	}
	if cfg.GrowthFactor <= 1 {
		cfg.GrowthFactor = 6.0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Hour
	}
	return &Scheduler{svc: svc, txlog: txlog, cfg: cfg, logger: logger, now: time.Now}
}

// SetClock overrides the clock, for tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info().
		Bool("enabled", s.cfg.Enabled).
		Dur("tick", s.cfg.TickInterval).
		Int("max_attempts", s.cfg.MaxAttempts).
		Msg("retry scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retry scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes one batch of due entries.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}

	if n, err := s.txlog.SweepTerminalFailures(ctx); err != nil {
		s.logger.Error().Err(err).Msg("sweeping terminal failures failed")
	} else if n > 0 {
		s.logger.Warn().Int("count", n).Msg("dead-lettered terminally failed entries")
	}

	entries, err := s.txlog.FindDueRetries(ctx, s.cfg.BatchSize, s.cfg.MaxAttempts)
	if err != nil {
		s.logger.Error().Err(err).Msg("querying due retries failed")
		return
	}

	for _, entry := range entries {
		s.processEntry(ctx, entry)
	}
}

func (s *Scheduler) processEntry(ctx context.Context, entry *outbox.Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("entry_id", entry.ID.String()).
				Interface("panic", r).
				Msg("panic while retrying entry")
		}
	}()

	log := s.logger.With().
		Str("entry_id", entry.ID.String()).
		Str("resource_type", entry.ResourceType).
		Int("retry_count", entry.RetryCount).
		Logger()

	res, err := s.svc.RetryEntry(ctx, entry)
	if err == nil {
		log.Info().Str("external_id", res.ExternalID).Str("result", res.Kind.String()).Msg("retry succeeded")
		return
	}

	var notFound *RecordNotFoundError
	if errors.As(err, &notFound) {
		log.Warn().Msg("local record missing, dead-lettering entry")
		s.deadLetter(ctx, entry, "record not found")
		return
	}

	var classified interface{ Retryable() bool }
	if !errors.As(err, &classified) {
		// Unclassified failure, likely local infrastructure. Leave the entry
		// alone; the claim lease expires and it becomes due again.
		log.Error().Err(err).Msg("retry failed without classification, leaving entry for next tick")
		return
	}

	if !classified.Retryable() {
		log.Warn().Err(err).Msg("terminal failure, dead-lettering entry")
		s.deadLetter(ctx, entry, err.Error())
		return
	}

	next := entry.RetryCount + 1
	if next >= s.cfg.MaxAttempts {
		log.Warn().Err(err).Int("attempts", next).Msg("retry budget exhausted, dead-lettering entry")
		s.deadLetter(ctx, entry, "max retry attempts exhausted: "+err.Error())
		return
	}

	delay := s.backoff(next)
	nextAt := s.now().Add(delay)
	if err := s.txlog.ScheduleRetry(ctx, entry.ID, next, nextAt); err != nil {
		log.Error().Err(err).Msg("scheduling next retry failed")
		return
	}
	log.Info().Dur("delay", delay).Time("next_retry_at", nextAt).Msg("retry rescheduled")
}

func (s *Scheduler) deadLetter(ctx context.Context, entry *outbox.Entry, reason string) {
	if err := s.txlog.PromoteToDeadLetter(ctx, entry.ID, reason); err != nil {
		s.logger.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("dead-letter promotion failed")
	}
}

// backoff computes the delay before attempt n (1-based):
// min(initialDelay * growth^(n-1), maxDelay).
func (s *Scheduler) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(s.cfg.InitialDelay) * math.Pow(s.cfg.GrowthFactor, float64(attempt-1)))
	if d > s.cfg.MaxDelay || d <= 0 {
		return s.cfg.MaxDelay
	}
	return d
}
