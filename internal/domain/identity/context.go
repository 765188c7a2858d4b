package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/platform/apperr"
)

var (
	ErrNotAuthenticated = apperr.ErrNotAuthenticated
	ErrProfileNotFound  = apperr.ErrProfileNotFound
	ErrNoTenant         = apperr.ErrNoTenant
)

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity resolved for the request, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// Scope returns the tenant and principal every clinic-scoped operation is
// stamped with. It fails with ErrNotAuthenticated, ErrProfileNotFound or
// ErrNoTenant.
func Scope(ctx context.Context) (tenantID, principalID uuid.UUID, err error) {
	id := FromContext(ctx)
	if id == nil {
		return uuid.Nil, uuid.Nil, ErrNotAuthenticated
	}
	tenantID, err = id.TenantID()
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, id.PrincipalID, nil
}

// Require returns apperr.ErrForbidden unless the identity on ctx holds c.
func Require(ctx context.Context, c Capability) error {
	id := FromContext(ctx)
	if id == nil {
		return ErrNotAuthenticated
	}
	if !id.Can(c) {
		return apperr.ErrForbidden
	}
	return nil
}
