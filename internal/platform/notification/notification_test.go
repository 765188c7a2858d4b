package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/platform/auth"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/metrics"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func validRequest() PrescriptionEmailRequest {
	return PrescriptionEmailRequest{
		RecipientEmail:   "jane@example.com",
		PatientName:      "Jane Doe",
		DoctorName:       "Dr. House",
		ClinicName:       "Clinique Atlas",
		PrescriptionDate: "17 octobre 2026",
		Medications: []EmailMedication{
			{MedicationName: "Amoxicillin", Dosage: "500mg", Frequency: "Deux fois par jour", Duration: "7 jours"},
		},
	}
}

func newTestComposer() *Composer {
	c := NewComposer(i18n.New(i18n.French))
	c.now = func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }
	return c
}

func newTestMailer(sender EmailSender) (*Mailer, *metrics.Collector) {
	m := metrics.NewCollector("test")
	return NewMailer(newTestComposer(), sender, zerolog.Nop(), m), m
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "jane.doe+rx@clinic.example.com"}
	invalid := []string{"", "jane", "jane@", "jane@clinic", "ja ne@clinic.com", "@clinic.com"}
	for _, v := range valid {
		if !ValidEmail(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	for _, v := range invalid {
		if ValidEmail(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *PrescriptionEmailRequest)
		want   string
	}{
		{"valid", func(r *PrescriptionEmailRequest) {}, ""},
		{"missing recipient", func(r *PrescriptionEmailRequest) { r.RecipientEmail = "" }, "Missing required fields"},
		{"missing patient", func(r *PrescriptionEmailRequest) { r.PatientName = "" }, "Missing required fields"},
		{"missing medications", func(r *PrescriptionEmailRequest) { r.Medications = nil }, "Missing required fields"},
		{"bad email", func(r *PrescriptionEmailRequest) { r.RecipientEmail = "not-an-email" }, "Invalid email format"},
		{"empty medications", func(r *PrescriptionEmailRequest) { r.Medications = []EmailMedication{} }, "Medications must be a non-empty array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var reqErr *RequestError
			if !errors.As(err, &reqErr) || reqErr.Status != http.StatusBadRequest || reqErr.Message != tt.want {
				t.Errorf("expected 400 %q, got %v", tt.want, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Composer
// ---------------------------------------------------------------------------

func TestCompose_DefaultsToFrench(t *testing.T) {
	p, err := newTestComposer().Compose(validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Subject != "Ordonnance médicale - Jane Doe" {
		t.Errorf("unexpected subject %q", p.Subject)
	}
	if p.To != "jane@example.com" {
		t.Errorf("unexpected recipient %q", p.To)
	}
	for _, want := range []string{`dir="ltr"`, `lang="fr"`, "Bonjour", "1. Amoxicillin", "500mg", "© 2026 WASFA PRO"} {
		if !strings.Contains(p.HTMLContent, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestCompose_ArabicIsRTL(t *testing.T) {
	req := validRequest()
	req.Language = "ar"
	p, _ := newTestComposer().Compose(req)

	if !strings.Contains(p.HTMLContent, `dir="rtl"`) {
		t.Error("expected rtl document")
	}
	if p.Subject != "وصفة طبية - Jane Doe" {
		t.Errorf("unexpected subject %q", p.Subject)
	}
}

func TestCompose_EscapesHTML(t *testing.T) {
	req := validRequest()
	req.ClinicName = "<script>alert(1)</script>"
	p, _ := newTestComposer().Compose(req)

	if strings.Contains(p.HTMLContent, "<script>alert(1)</script>") {
		t.Error("expected clinic name to be escaped")
	}
}

func TestCompose_OmitsEmptyFields(t *testing.T) {
	req := validRequest()
	req.Medications = []EmailMedication{{MedicationName: "Paracetamol"}}
	p, _ := newTestComposer().Compose(req)

	if strings.Contains(p.HTMLContent, "💊") {
		t.Error("expected no dosage line when dosage is empty")
	}
}

// ---------------------------------------------------------------------------
// Mailer and HTTP handler
// ---------------------------------------------------------------------------

func TestMailer_SendsAndCounts(t *testing.T) {
	sender := &MockEmailSender{}
	mailer, m := newTestMailer(sender)

	res, err := mailer.SendPrescriptionEmail(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Message != "Email prepared successfully" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(sender.Calls()) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.Calls()))
	}
	if got := testutil.ToFloat64(m.EmailsSent.WithLabelValues("sent")); got != 1 {
		t.Errorf("expected sent counter 1, got %v", got)
	}
}

func TestMailer_SenderFailure(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true, FailError: "relay down"}
	mailer, m := newTestMailer(sender)

	if _, err := mailer.SendPrescriptionEmail(context.Background(), validRequest()); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(m.EmailsSent.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected failed counter 1, got %v", got)
	}
}

func callFunction(t *testing.T, body string, principal string) *httptest.ResponseRecorder {
	t.Helper()
	mailer, _ := newTestMailer(&MockEmailSender{})
	h := NewFunctionHandler(mailer, zerolog.Nop())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/send-prescription-email", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if principal != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.HandleSendPrescriptionEmail(c); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	return rec
}

func TestFunctionHandler_Unauthenticated(t *testing.T) {
	rec := callFunction(t, `{}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestFunctionHandler_Rejections(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"recipientEmail":"jane@example.com","patientName":"Jane"}`, "Missing required fields"},
		{`{"recipientEmail":"jane","patientName":"Jane","medications":[{"medication_name":"A"}]}`, "Invalid email format"},
		{`{"recipientEmail":"jane@example.com","patientName":"Jane","medications":[]}`, "Medications must be a non-empty array"},
		{`{"recipientEmail":"jane@example.com","patientName":"Jane","medications":"A"}`, "Invalid request body"},
	}
	for _, tt := range tests {
		rec := callFunction(t, tt.body, "user-1")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.body, rec.Code)
			continue
		}
		var body map[string]string
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["error"] != tt.want {
			t.Errorf("expected error %q, got %q", tt.want, body["error"])
		}
	}
}

func TestFunctionHandler_Success(t *testing.T) {
	rec := callFunction(t, `{
		"recipientEmail": "jane@example.com",
		"patientName": "Jane Doe",
		"doctorName": "Dr. House",
		"clinicName": "Atlas",
		"prescriptionDate": "October 17, 2026",
		"medications": [{"medication_name": "Amoxicillin", "dosage": "500mg"}],
		"language": "en"
	}`, "user-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res SendResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.Preview.To != "jane@example.com" || res.Preview.Subject != "Medical Prescription - Jane Doe" {
		t.Errorf("unexpected response %+v", res)
	}
	if !strings.Contains(res.Preview.HTMLContent, "Hello,") {
		t.Error("expected English greeting")
	}
}

// ---------------------------------------------------------------------------
// Senders
// ---------------------------------------------------------------------------

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "u", Password: "p", From: "noreply@clinic.example"})
	var gotAddr string
	var gotTo []string
	var gotMsg string
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := s.SendEmail(context.Background(), "jane@example.com", "Ordonnance médicale", "<p>hi</p>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("unexpected addr %s", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "jane@example.com" {
		t.Errorf("unexpected recipients %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Content-Type: text/html; charset=UTF-8") {
		t.Error("expected html content type")
	}
	if !strings.Contains(gotMsg, "Subject: =?utf-8?q?") {
		t.Errorf("expected encoded subject, got %s", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\n<p>hi</p>") {
		t.Error("expected body after headers")
	}
}

func TestSMTPSender_RejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "a@b.co"})
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send should not be called")
		return nil
	}
	if err := s.SendEmail(context.Background(), "a@b.co\r\nBcc: x@y.z", "s", "b"); err == nil {
		t.Error("expected error")
	}
}

func TestLogSender(t *testing.T) {
	if err := NewLogSender(zerolog.Nop()).SendEmail(context.Background(), "a@b.co", "s", "b"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Remote client
// ---------------------------------------------------------------------------

func TestRemoteClient_ForwardsBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(SendResult{Success: true, Message: "Email prepared successfully", Preview: Preview{To: "jane@example.com"}})
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL)
	ctx := WithBearerToken(context.Background(), "tok-123")
	res, err := client.SendPrescriptionEmail(ctx, validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected forwarded bearer, got %q", gotAuth)
	}
	if !res.Success || res.Preview.To != "jane@example.com" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRemoteClient_MapsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Invalid email format"}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL)
	_, err := client.SendPrescriptionEmail(context.Background(), validRequest())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Message != "Invalid email format" {
		t.Fatalf("expected RequestError, got %v", err)
	}
}

func TestRemoteClient_BreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, WithHTTPClient(srv.Client()))
	for i := 0; i < 7; i++ {
		client.SendPrescriptionEmail(context.Background(), validRequest())
	}
	if calls != 5 {
		t.Errorf("expected breaker to stop calls after 5 failures, got %d", calls)
	}
	_, err := client.SendPrescriptionEmail(context.Background(), validRequest())
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("expected unavailable error, got %v", err)
	}
}
