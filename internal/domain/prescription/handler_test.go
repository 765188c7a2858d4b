package prescription

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/render"
)

func newTestServer(f *fixture, issue echo.MiddlewareFunc, roles ...string) *echo.Echo {
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(f.as(roles...)))
			return next(c)
		}
	})
	var mws []echo.MiddlewareFunc
	if issue != nil {
		mws = append(mws, issue)
	}
	NewHandler(f.svc, f.catalog, mws...).RegisterRoutes(api)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createBody() string {
	return `{"patient_id":"` + f.jane.ID.String() + `","tenant_id":"` + uuid.NewString() + `",
		"medications":[{"medication_name":"Amoxicillin","dosage":"500mg","sort_order":4},{"medication_name":""}]}`
}

func TestHandler_CreateAndList(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, nil, identity.RoleDoctor)

	rec := do(e, http.MethodPost, "/api/v1/prescriptions", f.createBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Prescription
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.TenantID != f.tenant || len(p.Medications) != 1 || p.Medications[0].SortOrder != 0 {
		t.Errorf("unexpected prescription %+v", p)
	}

	rec = do(e, http.MethodGet, "/api/v1/prescriptions?q=jane", "")
	var page struct {
		Data  []Prescription `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Data[0].Patient.FullName != "Jane Doe" || page.Data[0].Medications[0].MedicationName != "Amoxicillin" {
		t.Errorf("unexpected list %s", rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/v1/patients/"+f.jane.ID.String()+"/prescriptions", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected patient prescriptions %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/api/v1/prescriptions?patient_id=nope", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad patient_id, got %d", rec.Code)
	}
}

func TestHandler_IssueGuardOnlyOnCreate(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	blocked := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return c.JSON(http.StatusPaymentRequired, map[string]string{"error": "subscription inactive"})
		}
	}
	e := newTestServer(f, blocked, identity.RoleDoctor)

	if rec := do(e, http.MethodPost, "/api/v1/prescriptions", f.createBody()); rec.Code != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, "/api/v1/prescriptions/"+p.ID.String(), `{"notes":"ok"}`); rec.Code != http.StatusOK {
		t.Errorf("expected edits to stay open, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/prescriptions/"+p.ID.String(), ""); rec.Code != http.StatusOK {
		t.Errorf("expected reads to stay open, got %d", rec.Code)
	}
}

func TestHandler_AssistantCannotWrite(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	e := newTestServer(f, nil, identity.RoleAssistant)

	if rec := do(e, http.MethodPost, "/api/v1/prescriptions", f.createBody()); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/api/v1/prescriptions/"+p.ID.String(), ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/prescriptions", ""); rec.Code != http.StatusOK {
		t.Errorf("expected assistant to read, got %d", rec.Code)
	}
}

func TestHandler_Documents(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	e := newTestServer(f, nil, identity.RoleDoctor)

	rec := do(e, http.MethodGet, "/api/v1/prescriptions/"+p.ID.String()+"/print?lang=ar", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `dir="rtl"`) {
		t.Errorf("expected arabic document, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1/prescriptions/"+p.ID.String()+"/pdf", "")
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Errorf("unexpected pdf response %d %s", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), ".pdf") {
		t.Error("expected attachment file name")
	}

	rec = do(e, http.MethodPost, "/api/v1/prescriptions/"+p.ID.String()+"/email", `{"recipient_email":"jane@example.com"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("unexpected email response %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPost, "/api/v1/prescriptions/"+p.ID.String()+"/email", `{"recipient_email":"bad"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_PDFWithoutRasterizer(t *testing.T) {
	f := newFixture()
	f.svc.renderer = render.New(f.catalog, nil, f.metrics)
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	e := newTestServer(f, nil, identity.RoleDoctor)

	if rec := do(e, http.MethodGet, "/api/v1/prescriptions/"+p.ID.String()+"/pdf", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
