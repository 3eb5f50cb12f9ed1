package encounter

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the encounters store contract. Create and the listings
// serve the host EMR's clinical flows, which share this database; the sync
// path reads by id and writes the identity link.
type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	// GetByID loads the encounter with the patient's Ghana Card joined in.
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)

	// SetNHIEResourceID records the external identity assigned by the
	// exchange. Overwrites any previous link.
	SetNHIEResourceID(ctx context.Context, id uuid.UUID, externalID string) error
}
