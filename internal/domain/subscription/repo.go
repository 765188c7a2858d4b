package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and writes the subscription columns of tenants.
type Repository interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*State, error)
	Update(ctx context.Context, s *State) error
}
