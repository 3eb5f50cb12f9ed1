package sync

import "fmt"

// Kind tags how a submission reached its external identity.
type Kind int

const (
	// Created: the exchange accepted the document and created the resource.
	Created Kind = iota
	// AlreadyExists: the record was already linked, or the exchange answered
	// a conditional create with the existing resource.
	AlreadyExists
	// ReconciledDuplicate: the exchange reported a duplicate business key and
	// its identity was adopted locally.
	ReconciledDuplicate
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case AlreadyExists:
		return "already-exists"
	case ReconciledDuplicate:
		return "reconciled-duplicate"
	default:
		return "unknown"
	}
}

// Result is the successful outcome of a sync attempt. Callers switch on
// Kind instead of distinguishing outcomes by error type.
type Result struct {
	Kind       Kind
	ExternalID string
}

// RecordNotFoundError marks a sync request for a local record that no
// longer exists. The scheduler dead-letters such entries immediately.
type RecordNotFoundError struct {
	ResourceType string
	LocalID      string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.LocalID)
}

func (e *RecordNotFoundError) Retryable() bool { return false }

// PersistenceError wraps an outbox or identity-link write failure. It is
// reported through logging only and never replaces the primary outcome of
// a sync attempt.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
