package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds each request's context with d. Routes ending in one of
// the suffixes in overrides get that duration instead; zero disables the
// deadline. A handler that fails with the deadline error before writing a
// response is answered with 504.
func RequestTimeout(d time.Duration, overrides map[string]time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limit := d
			path := c.Request().URL.Path
			for suffix, o := range overrides {
				if strings.HasSuffix(path, suffix) {
					limit = o
					break
				}
			}
			if limit <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), limit)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && !c.Response().Committed {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request took too long")
			}
			return err
		}
	}
}
