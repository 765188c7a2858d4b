package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	routes := map[string]bool{
		"/health":                             true,
		"/health/db":                          true,
		"/metrics":                            true,
		"/api/v1/auth/sign-in":                true,
		"/api/v1/auth/sign-up":                true,
		"/api/v1/auth/password-reset/request": true,
		"/api/v1/auth/password-reset/confirm": true,
		"/files/*":                            true,
		"/api/v1/patients":                    false,
		"/api/v1/auth/sign-out":               false,
		"/api/v1/prescriptions/:id/pdf":       false,
		"/functions/v1/send-prescription":     false,
		"/health/extra":                       false,
		"/":                                   false,
	}
	e := echo.New()
	for route, public := range routes {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetPath(route)
		if got := AuthSkipper(c); got != public {
			t.Errorf("AuthSkipper(%s) = %v, want %v", route, got, public)
		}
	}
}
