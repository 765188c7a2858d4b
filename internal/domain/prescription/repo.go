package prescription

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores prescriptions. Every read and write is keyed by tenant.
type Repository interface {
	// Create inserts the prescription, then its medications under the new id.
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	// ReplaceMedications deletes the line items of a prescription and
	// inserts meds in their place.
	ReplaceMedications(ctx context.Context, prescriptionID uuid.UUID, meds []Medication) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, f Filter, limit, offset int) ([]*Prescription, int, error)
}
