package favorite

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *Favorite) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// List returns every favorite of the tenant ordered by name.
	List(ctx context.Context, tenantID uuid.UUID) ([]*Favorite, error)
}
