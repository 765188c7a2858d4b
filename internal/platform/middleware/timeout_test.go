package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func waitForContext(c echo.Context) error {
	select {
	case <-time.After(2 * time.Second):
		return c.NoContent(http.StatusOK)
	case <-c.Request().Context().Done():
		return fmt.Errorf("query patients: %w", c.Request().Context().Err())
	}
}

func runTimeout(t *testing.T, path string, mw echo.MiddlewareFunc, h echo.HandlerFunc) (error, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), rec)
	return mw(h)(c), rec
}

func TestRequestTimeout_Expiry(t *testing.T) {
	err, _ := runTimeout(t, "/api/v1/patients", RequestTimeout(20*time.Millisecond, nil), waitForContext)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusGatewayTimeout {
		t.Fatalf("err = %v, want 504", err)
	}
}

func TestRequestTimeout_SetsDeadline(t *testing.T) {
	err, rec := runTimeout(t, "/api/v1/patients", RequestTimeout(time.Minute, nil), func(c echo.Context) error {
		dl, ok := c.Request().Context().Deadline()
		if !ok || time.Until(dl) > time.Minute {
			t.Errorf("deadline = %v, %v", dl, ok)
		}
		return c.NoContent(http.StatusOK)
	})
	if err != nil || rec.Code != http.StatusOK {
		t.Fatalf("err = %v, status = %d", err, rec.Code)
	}
}

func TestRequestTimeout_Overrides(t *testing.T) {
	overrides := map[string]time.Duration{"/pdf": 0, "/email": time.Hour}

	err, _ := runTimeout(t, "/api/v1/prescriptions/7/pdf", RequestTimeout(time.Millisecond, overrides), func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline on exempt route")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _ = runTimeout(t, "/api/v1/prescriptions/7/email", RequestTimeout(time.Millisecond, overrides), func(c echo.Context) error {
		if dl, ok := c.Request().Context().Deadline(); !ok || time.Until(dl) < 30*time.Minute {
			t.Errorf("expected the longer deadline, got %v", dl)
		}
		return nil
	})
}

func TestRequestTimeout_PassesOtherErrors(t *testing.T) {
	notFound := echo.NewHTTPError(http.StatusNotFound, "patient not found")
	err, _ := runTimeout(t, "/api/v1/patients/1", RequestTimeout(time.Second, nil), func(echo.Context) error {
		return notFound
	})
	if err != notFound {
		t.Fatalf("err = %v", err)
	}
}

func TestRequestTimeout_CommittedResponseKeepsError(t *testing.T) {
	err, rec := runTimeout(t, "/api/v1/patients", RequestTimeout(20*time.Millisecond, nil), func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusOK)
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})
	var he *echo.HTTPError
	if errors.As(err, &he) {
		t.Fatalf("expected raw context error once the response is committed, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
