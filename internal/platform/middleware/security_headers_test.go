package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveSecured(path string, h echo.HandlerFunc, prepare func(*http.Request)) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET(path, h)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if prepare != nil {
		prepare(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	rec := serveSecured("/api/v1/patients", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{})
	}, nil)

	for _, kv := range responseHeaders {
		if got := rec.Header().Get(kv[0]); got != kv[1] {
			t.Errorf("header %s: got %q, want %q", kv[0], got, kv[1])
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("plain HTTP should not get HSTS, got %q", got)
	}
}

func TestSecurityHeaders_HSTSBehindProxy(t *testing.T) {
	rec := serveSecured("/api/v1/patients", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, func(r *http.Request) {
		r.Header.Set(echo.HeaderXForwardedProto, "https")
	})

	if got := rec.Header().Get("Strict-Transport-Security"); got != hsts {
		t.Errorf("expected HSTS over https, got %q", got)
	}
}

func TestSecurityHeaders_DocumentOverride(t *testing.T) {
	rec := serveSecured("/api/v1/prescriptions/:id/print", func(c echo.Context) error {
		c.Response().Header().Set("Content-Security-Policy", DocumentCSP)
		return c.HTML(http.StatusOK, "<html><body>Amoxicillin</body></html>")
	}, nil)

	if got := rec.Header().Get("Content-Security-Policy"); got != DocumentCSP {
		t.Errorf("expected document policy, got %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected printable documents to stay uncached, got %q", got)
	}
}

func TestSecurityHeaders_OnErrors(t *testing.T) {
	rec := serveSecured("/api/v1/prescriptions/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}, nil)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on error responses")
	}
}
