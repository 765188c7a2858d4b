package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector_Independent(t *testing.T) {
	a := NewCollector("clinic")
	b := NewCollector("clinic")

	a.PrescriptionsIssued.Inc()
	if got := testutil.ToFloat64(a.PrescriptionsIssued); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(b.PrescriptionsIssued); got != 0 {
		t.Errorf("expected separate registries, got %v", got)
	}
}

func TestMiddleware_RecordsRoute(t *testing.T) {
	c := NewCollector("clinic")
	e := echo.New()
	e.Use(c.Middleware())
	e.GET("/api/v1/patients/:id", func(ec echo.Context) error {
		return ec.NoContent(http.StatusNoContent)
	})
	e.GET("/api/v1/missing/:id", func(ec echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	for _, path := range []string{"/api/v1/patients/1", "/api/v1/patients/2", "/api/v1/missing/3"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("GET", "/api/v1/patients/:id", "204")); got != 2 {
		t.Errorf("expected 2 requests on the patient route, got %v", got)
	}
	if got := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("GET", "/api/v1/missing/:id", "404")); got != 1 {
		t.Errorf("expected 1 not found, got %v", got)
	}
	if got := testutil.ToFloat64(c.InFlightGauge); got != 0 {
		t.Errorf("expected no in-flight requests, got %v", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	c := NewCollector("clinic")
	c.AuditBufferDropped.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "clinic_audit_buffer_dropped_total 1") {
		t.Error("expected audit drop counter in exposition")
	}
}
