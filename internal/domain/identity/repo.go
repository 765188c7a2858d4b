package identity

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for tenants, profiles and
// roles. Get methods return an error satisfying apperr.IsNotFound for
// missing rows.
type Repository interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	CreateProfile(ctx context.Context, p *Profile) error
	UpdateProfile(ctx context.Context, p *Profile) error
	GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
	AddRole(ctx context.Context, userID uuid.UUID, role string) error

	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
	CreateTenant(ctx context.Context, t *Tenant) error
	UpdateTenant(ctx context.Context, t *Tenant) error
}
