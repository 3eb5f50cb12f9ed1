// Package sync drives submissions of local clinical records to the national
// exchange: one orchestrated attempt per call, with the transaction log as
// audit trail and the scheduler re-driving failed attempts.
package sync

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/ghanaemr/nhie-sync/internal/domain/encounter"
	"github.com/ghanaemr/nhie-sync/internal/domain/outbox"
	"github.com/ghanaemr/nhie-sync/internal/domain/patient"
	"github.com/ghanaemr/nhie-sync/internal/platform/fhir"
	"github.com/ghanaemr/nhie-sync/internal/platform/mask"
	"github.com/ghanaemr/nhie-sync/internal/platform/nhie"
	"github.com/ghanaemr/nhie-sync/internal/platform/validation"
)

// ExchangeClient is the outbound surface the orchestrator needs.
type ExchangeClient interface {
	Submit(ctx context.Context, resourceType string, document []byte, businessKey string) (*nhie.Outcome, error)
	BaseURL() string
}

type Service struct {
	patients   patient.Repository
	encounters encounter.Repository
	txlog      outbox.Repository
	client     ExchangeClient
	logger     zerolog.Logger
}

func NewService(patients patient.Repository, encounters encounter.Repository, txlog outbox.Repository, client ExchangeClient, logger zerolog.Logger) *Service {
	return &Service{
		patients:   patients,
		encounters: encounters,
		txlog:      txlog,
		client:     client,
		logger:     logger,
	}
}

// target is one local record prepared for submission.
type target struct {
	localID      uuid.UUID
	resourceType string
	businessKey  string
	link         *string
	toFHIR       func() (map[string]interface{}, error)
	currentLink  func(ctx context.Context) (*string, error)
	saveLink     func(ctx context.Context, externalID string) error
}

func (s *Service) patientTarget(p *patient.Patient) target {
	// The If-None-Exist token must match the identifier emitted in the
	// document, so the card is normalized the same way the mapper does.
	key := validation.NormalizeGhanaCard(p.GhanaCard)
	return target{
		localID:      p.ID,
		resourceType: outbox.ResourcePatient,
		businessKey:  key,
		link:         p.NHIEResourceID,
		toFHIR:       p.ToFHIR,
		currentLink: func(ctx context.Context) (*string, error) {
			fresh, err := s.patients.GetByID(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			return fresh.NHIEResourceID, nil
		},
		saveLink: func(ctx context.Context, externalID string) error {
			return s.patients.SetNHIEResourceID(ctx, p.ID, externalID)
		},
	}
}

func (s *Service) encounterTarget(e *encounter.Encounter) target {
	return target{
		localID:      e.ID,
		resourceType: outbox.ResourceEncounter,
		// Encounters have no national identifier of their own; conditional
		// create is keyed on patients only.
		businessKey: "",
		link:        e.NHIEResourceID,
		toFHIR:      e.ToFHIR,
		currentLink: func(ctx context.Context) (*string, error) {
			fresh, err := s.encounters.GetByID(ctx, e.ID)
			if err != nil {
				return nil, err
			}
			return fresh.NHIEResourceID, nil
		},
		saveLink: func(ctx context.Context, externalID string) error {
			return s.encounters.SetNHIEResourceID(ctx, e.ID, externalID)
		},
	}
}

// SyncPatient submits one patient to the exchange and returns its external
// identity. Idempotent: an already-linked patient short-circuits with zero
// network calls.
func (s *Service) SyncPatient(ctx context.Context, id uuid.UUID) (Result, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, &RecordNotFoundError{ResourceType: outbox.ResourcePatient, LocalID: id.String()}
		}
		return Result{}, err
	}
	return s.submit(ctx, s.patientTarget(p), nil)
}

// SyncEncounter submits one encounter to the exchange.
func (s *Service) SyncEncounter(ctx context.Context, id uuid.UUID) (Result, error) {
	e, err := s.encounters.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, &RecordNotFoundError{ResourceType: outbox.ResourceEncounter, LocalID: id.String()}
		}
		return Result{}, err
	}
	return s.submit(ctx, s.encounterTarget(e), nil)
}

// RetryEntry re-drives a previously failed submission against its existing
// transaction-log entry instead of appending a new one. Called by the
// scheduler only.
func (s *Service) RetryEntry(ctx context.Context, entry *outbox.Entry) (Result, error) {
	switch entry.ResourceType {
	case outbox.ResourcePatient:
		p, err := s.patients.GetByID(ctx, entry.LocalRecordID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Result{}, &RecordNotFoundError{ResourceType: entry.ResourceType, LocalID: entry.LocalRecordID.String()}
			}
			return Result{}, err
		}
		return s.submit(ctx, s.patientTarget(p), entry)
	case outbox.ResourceEncounter:
		e, err := s.encounters.GetByID(ctx, entry.LocalRecordID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Result{}, &RecordNotFoundError{ResourceType: entry.ResourceType, LocalID: entry.LocalRecordID.String()}
			}
			return Result{}, err
		}
		return s.submit(ctx, s.encounterTarget(e), entry)
	default:
		return Result{}, &RecordNotFoundError{ResourceType: entry.ResourceType, LocalID: entry.LocalRecordID.String()}
	}
}

// submit is the per-attempt state machine. existing is nil on the
// synchronous path; the scheduler passes the claimed entry so the attempt
// updates it in place.
func (s *Service) submit(ctx context.Context, t target, existing *outbox.Entry) (Result, error) {
	if t.link != nil && *t.link != "" {
		// Already linked. On the retry path this is how an earlier accepted
		// but unacknowledged attempt gets its entry closed out.
		if existing != nil {
			s.updateEntry(ctx, existing, outbox.Outcome{
				Status:             outbox.StatusSuccess,
				ExternalResourceID: t.link,
			})
		}
		return Result{Kind: AlreadyExists, ExternalID: *t.link}, nil
	}

	doc, err := t.toFHIR()
	if err != nil {
		// No call was attempted, so nothing is logged for the fresh path.
		if existing != nil {
			msg := err.Error()
			s.updateEntry(ctx, existing, outbox.Outcome{Status: outbox.StatusFailed, ErrorMessage: &msg})
		}
		return Result{}, err
	}
	body, err := fhir.Canonical(doc)
	if err != nil {
		return Result{}, &fhir.MappingError{ResourceType: t.resourceType, LocalID: t.localID.String(), Reason: err.Error()}
	}

	entry := existing
	if entry == nil {
		entry = &outbox.Entry{
			CorrelationID:     uuid.NewString(),
			LocalRecordID:     t.localID,
			ResourceType:      t.resourceType,
			HTTPMethod:        http.MethodPost,
			Endpoint:          s.client.BaseURL() + "/" + t.resourceType,
			MaskedRequestBody: mask.Body(string(body)),
			Status:            outbox.StatusPending,
		}
		if err := s.txlog.Append(ctx, entry); err != nil {
			s.reportPersistence("append", err)
			entry = nil
		}
	}

	out, err := s.client.Submit(ctx, t.resourceType, body, t.businessKey)
	if err != nil {
		msg := err.Error()
		s.updateEntry(ctx, entry, outbox.Outcome{Status: outbox.StatusFailed, ErrorMessage: &msg})
		return Result{}, err
	}

	maskedResp := mask.Body(out.Body)

	switch {
	case out.Success:
		return s.handleSuccess(ctx, t, entry, out, maskedResp)
	case out.StatusCode == http.StatusConflict:
		return s.reconcileConflict(ctx, t, entry, out, maskedResp)
	default:
		msg := out.ErrorMessage
		s.updateEntry(ctx, entry, outbox.Outcome{
			Status:             outbox.StatusFailed,
			ResponseStatus:     &out.StatusCode,
			MaskedResponseBody: &maskedResp,
			ErrorMessage:       &msg,
		})
		return Result{}, nhie.NewRemoteRejection(out.StatusCode, out.ErrorMessage, out.Retryable)
	}
}

func (s *Service) handleSuccess(ctx context.Context, t target, entry *outbox.Entry, out *nhie.Outcome, maskedResp string) (Result, error) {
	externalID := out.ExtractResourceID()
	if externalID == "" {
		// The exchange accepted the document but returned no identity.
		// That breaks the contract; there is nothing a retry could fix.
		msg := "success response carried no resource id"
		s.updateEntry(ctx, entry, outbox.Outcome{
			Status:             outbox.StatusFailed,
			ResponseStatus:     &out.StatusCode,
			MaskedResponseBody: &maskedResp,
			ErrorMessage:       &msg,
		})
		return Result{}, nhie.NewRemoteRejection(out.StatusCode, msg, false)
	}

	if err := t.saveLink(ctx, externalID); err != nil {
		s.reportPersistence("save identity link", err)
	}
	s.updateEntry(ctx, entry, outbox.Outcome{
		Status:             outbox.StatusSuccess,
		ResponseStatus:     &out.StatusCode,
		MaskedResponseBody: &maskedResp,
		ExternalResourceID: &externalID,
	})

	kind := Created
	if out.StatusCode == http.StatusOK {
		kind = AlreadyExists
	}
	s.logger.Info().
		Str("resource_type", t.resourceType).
		Str("local_id", t.localID.String()).
		Str("external_id", externalID).
		Str("result", kind.String()).
		Msg("record synced to NHIE")
	return Result{Kind: kind, ExternalID: externalID}, nil
}

// reconcileConflict handles a duplicate business key: the exchange already
// holds this record under some identity, and that identity wins.
func (s *Service) reconcileConflict(ctx context.Context, t target, entry *outbox.Entry, out *nhie.Outcome, maskedResp string) (Result, error) {
	externalID := nhie.ParseResourceID(out.Body)
	if externalID == "" {
		msg := "conflict response carried no resource id"
		s.updateEntry(ctx, entry, outbox.Outcome{
			Status:             outbox.StatusFailed,
			ResponseStatus:     &out.StatusCode,
			MaskedResponseBody: &maskedResp,
			ErrorMessage:       &msg,
		})
		return Result{}, nhie.NewRemoteRejection(out.StatusCode, msg, false)
	}

	// The link may have been written concurrently since this record was
	// loaded. If it disagrees with the exchange, the exchange wins.
	if current, err := t.currentLink(ctx); err == nil && current != nil && *current != "" && *current != externalID {
		s.logger.Warn().
			Str("resource_type", t.resourceType).
			Str("local_id", t.localID.String()).
			Str("local_link", *current).
			Str("exchange_id", externalID).
			Msg("local identity link disagrees with exchange, adopting exchange value")
	}

	if err := t.saveLink(ctx, externalID); err != nil {
		s.reportPersistence("save identity link", err)
	}
	s.updateEntry(ctx, entry, outbox.Outcome{
		Status:             outbox.StatusSuccess,
		ResponseStatus:     &out.StatusCode,
		MaskedResponseBody: &maskedResp,
		ExternalResourceID: &externalID,
	})

	s.logger.Info().
		Str("resource_type", t.resourceType).
		Str("local_id", t.localID.String()).
		Str("external_id", externalID).
		Msg("duplicate reconciled against exchange identity")
	return Result{Kind: ReconciledDuplicate, ExternalID: externalID}, nil
}

// updateEntry writes an attempt outcome to the transaction log. A write
// failure is reported and swallowed: the audit trail never gates the
// clinical-data flow.
func (s *Service) updateEntry(ctx context.Context, entry *outbox.Entry, out outbox.Outcome) {
	if entry == nil {
		return
	}
	if err := s.txlog.UpdateOutcome(ctx, entry.ID, out); err != nil {
		s.reportPersistence("update outcome", err)
	}
}

func (s *Service) reportPersistence(op string, err error) {
	perr := &PersistenceError{Op: op, Err: err}
	s.logger.Error().Err(perr).Msg("transaction log write failed")
}
