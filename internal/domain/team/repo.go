package team

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
)

type Repository interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]*Member, error)
	Get(ctx context.Context, tenantID, userID uuid.UUID) (*Member, error)
	// Link creates or re-attaches the profile of p.ID to p.TenantID.
	Link(ctx context.Context, p *identity.Profile) error
	// SetRole replaces every role of the user with role.
	SetRole(ctx context.Context, userID uuid.UUID, role string) error
	// Remove detaches the user from the tenant and drops its roles.
	Remove(ctx context.Context, tenantID, userID uuid.UUID) error
}
