package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patients. Every method is scoped by tenant id; rows
// of other tenants are reported as not found.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Archive(ctx context.Context, tenantID, id uuid.UUID) error
	// List returns non-archived patients newest first. A non-empty q is a
	// case-insensitive substring filter on full_name.
	List(ctx context.Context, tenantID uuid.UUID, q string, limit, offset int) ([]*Patient, int, error)
}
