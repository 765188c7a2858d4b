package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication and tenant resolution.
var publicPaths = map[string]bool{
	"/health":                             true,
	"/health/db":                          true,
	"/metrics":                            true,
	"/api/v1/auth/sign-up":                true,
	"/api/v1/auth/sign-in":                true,
	"/api/v1/auth/password-reset/request": true,
	"/api/v1/auth/password-reset/confirm": true,
}

// publicPrefixes cover signed object URLs, which carry their own signature.
var publicPrefixes = []string{"/files/"}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
