package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/auth"
)

// Middleware resolves the authenticated principal and places the identity
// and its roles on the request context. When the principal belongs to a
// tenant, the tenant id is set under the echo key "tenant_id" for
// db.TenantMiddleware. Unauthenticated requests pass through untouched.
func Middleware(resolver *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			pid := auth.UserIDFromContext(ctx)
			if pid == "" {
				return next(c)
			}

			principalID, err := uuid.Parse(pid)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid principal")
			}

			id, err := resolver.Resolve(ctx, principalID)
			if err != nil {
				return apperr.HTTP(err)
			}

			ctx = WithIdentity(ctx, id)
			ctx = auth.WithRoles(ctx, id.Roles)
			c.SetRequest(c.Request().WithContext(ctx))
			if tid, err := id.TenantID(); err == nil {
				c.Set("tenant_id", tid.String())
			}
			return next(c)
		}
	}
}

// RequireCapability rejects requests whose identity lacks cap.
func RequireCapability(cap Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Require(c.Request().Context(), cap); err != nil {
				return apperr.HTTP(err)
			}
			return next(c)
		}
	}
}
