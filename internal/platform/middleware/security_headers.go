package middleware

import (
	"github.com/labstack/echo/v4"
)

// DocumentCSP is the Content-Security-Policy for printable HTML documents,
// which need inline styles and images loaded from signed storage URLs.
const DocumentCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src https: http: data:; frame-ancestors 'self'"

const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// responseHeaders are set on every response. Cache-Control is no-store
// because API responses carry patient data.
var responseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", apiCSP},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Cache-Control", "no-store"},
}

const hsts = "max-age=31536000; includeSubDomains"

// SecurityHeaders hardens every response. Strict-Transport-Security is only
// sent when the request arrived over HTTPS, directly or through a proxy that
// sets X-Forwarded-Proto. Handlers serving HTML replace the policy with
// DocumentCSP.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range responseHeaders {
				h.Set(kv[0], kv[1])
			}
			if c.Scheme() == "https" {
				h.Set("Strict-Transport-Security", hsts)
			}
			return next(c)
		}
	}
}
