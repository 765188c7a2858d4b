package subscription

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/metrics"
)

// RequireActive refuses the route with 402 when the caller's tenant may not
// create prescriptions. With enforce false it only logs the denial.
func RequireActive(svc *Service, enforce bool, m *metrics.Collector, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			tenantID, _, err := identity.Scope(ctx)
			if err != nil {
				return apperr.HTTP(err)
			}
			g, err := svc.ForTenant(ctx, tenantID, svc.language(c.Request()))
			if err != nil {
				return apperr.HTTP(err)
			}
			if g.CanCreatePrescription {
				return next(c)
			}

			logger.Info().
				Str("tenant_id", tenantID.String()).
				Str("status", g.Status).
				Bool("enforced", enforce).
				Msg("inactive subscription")
			if !enforce {
				return next(c)
			}
			if m != nil {
				m.SubscriptionDenied.Inc()
			}
			return c.JSON(http.StatusPaymentRequired, map[string]interface{}{
				"error":        apperr.ErrSubscriptionInactive.Error(),
				"message":      g.Message,
				"subscription": g,
			})
		}
	}
}
