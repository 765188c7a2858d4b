package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider(t *testing.T) (*Provider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	p, err := Init(context.Background(), Config{ServiceName: "clinic-test"}, rec)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, rec
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{SampleRate: 5}
	cfg.applyDefaults()

	if cfg.ServiceName != "clinic-server" {
		t.Errorf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate clamped to 1.0, got %f", cfg.SampleRate)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected development environment, got %q", cfg.Environment)
	}
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	p, rec := newTestProvider(t)

	e := echo.New()
	e.Use(p.TracingMiddleware())
	e.GET("/api/v1/prescriptions/:id", func(c echo.Context) error {
		c.Set("tenant_id", "t-1")
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/prescriptions/42", nil))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP GET /api/v1/prescriptions/:id" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}

	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == attribute.Key("clinic.tenant_id") && kv.Value.AsString() == "t-1" {
			found = true
		}
	}
	if !found {
		t.Error("expected tenant attribute on span")
	}
}

func TestTracingMiddleware_ErrorStatus(t *testing.T) {
	p, rec := newTestProvider(t)

	e := echo.New()
	e.Use(p.TracingMiddleware())
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("render failed")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status().Code)
	}
}

func TestTracingMiddleware_ContinuesRemoteTrace(t *testing.T) {
	p, rec := newTestProvider(t)

	e := echo.New()
	e.Use(p.TracingMiddleware())
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	e.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected propagated trace id, got %s", got)
	}
}
