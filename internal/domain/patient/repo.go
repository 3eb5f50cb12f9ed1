package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the patients store contract. The write surface (Create,
// Update) belongs to the host EMR's registration flows, which share this
// database; the sync path only reads records and writes the identity link.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByGhanaCard(ctx context.Context, ghanaCard string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	// SetNHIEResourceID records the external identity assigned by the
	// exchange. Overwrites any previous link.
	SetNHIEResourceID(ctx context.Context, id uuid.UUID, externalID string) error
}
