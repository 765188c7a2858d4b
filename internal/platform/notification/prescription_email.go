package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/clinicrx/clinic/internal/platform/i18n"
)

// Brand is the product name shown in outbound mail.
const Brand = "WASFA PRO"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether addr looks like an email address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// EmailMedication is one prescribed line in the email.
type EmailMedication struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage,omitempty"`
	Frequency      string `json:"frequency,omitempty"`
	Duration       string `json:"duration,omitempty"`
}

// PrescriptionEmailRequest is the mail function payload. A nil Medications
// means the field was absent.
type PrescriptionEmailRequest struct {
	RecipientEmail   string            `json:"recipientEmail"`
	PatientName      string            `json:"patientName"`
	DoctorName       string            `json:"doctorName"`
	ClinicName       string            `json:"clinicName"`
	PrescriptionDate string            `json:"prescriptionDate"`
	Medications      []EmailMedication `json:"medications"`
	Language         string            `json:"language,omitempty"`
}

// RequestError is a rejected mail function call.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(msg string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: msg}
}

// Validate checks the payload in the same order the mail function reports
// problems: missing fields, email format, then medications.
func (r *PrescriptionEmailRequest) Validate() error {
	if r.RecipientEmail == "" || r.PatientName == "" || r.Medications == nil {
		return badRequest("Missing required fields")
	}
	if !ValidEmail(r.RecipientEmail) {
		return badRequest("Invalid email format")
	}
	if len(r.Medications) == 0 {
		return badRequest("Medications must be a non-empty array")
	}
	return nil
}

// Preview is the rendered message.
type Preview struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

// Composer renders prescription emails.
type Composer struct {
	catalog *i18n.Catalog
	now     func() time.Time
}

func NewComposer(catalog *i18n.Catalog) *Composer {
	return &Composer{catalog: catalog, now: time.Now}
}

type emailView struct {
	Lang            string
	Dir             string
	Brand           string
	ClinicName      string
	Greeting        string
	Message         string
	MedicationTitle string
	Medications     []EmailMedication
	Footer          string
	SentVia         string
	Year            int
	Rights          string
}

// Compose renders req in its language, French when unset or unsupported.
func (c *Composer) Compose(req PrescriptionEmailRequest) (*Preview, error) {
	lang := c.catalog.Normalize(req.Language)
	if req.Language == "" {
		lang = i18n.French
	}

	view := emailView{
		Lang:            lang,
		Dir:             i18n.Dir(lang),
		Brand:           Brand,
		ClinicName:      req.ClinicName,
		Greeting:        c.catalog.Text("mail.greeting", lang),
		Message:         c.catalog.Text("mail.message", lang, req.DoctorName, req.ClinicName, req.PrescriptionDate),
		MedicationTitle: c.catalog.Text("mail.medications", lang),
		Medications:     req.Medications,
		Footer:          c.catalog.Text("mail.footer", lang),
		SentVia:         c.catalog.Text("mail.sent_via", lang),
		Year:            c.now().Year(),
		Rights:          c.catalog.Text("mail.rights", lang),
	}

	var buf bytes.Buffer
	if err := prescriptionEmailTmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render prescription email: %w", err)
	}
	return &Preview{
		To:          req.RecipientEmail,
		Subject:     c.catalog.Text("mail.subject", lang, req.PatientName),
		HTMLContent: buf.String(),
	}, nil
}

var prescriptionEmailTmpl = template.Must(template.New("prescription-email").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html dir="{{.Dir}}" lang="{{.Lang}}">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
    .container { background: white; border-radius: 12px; padding: 30px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
    .header { text-align: center; border-bottom: 3px solid #0d9488; padding-bottom: 20px; margin-bottom: 25px; }
    .logo { color: #0d9488; font-size: 28px; font-weight: bold; }
    .clinic-name { color: #666; font-size: 14px; margin-top: 5px; }
    .content { padding: 20px 0; }
    .medications { background: #f8f9fa; border-radius: 8px; padding: 20px; margin: 20px 0; }
    .medications h3 { color: #0d9488; margin-top: 0; }
    .medication-item { padding: 10px 0; border-bottom: 1px solid #eee; }
    .medication-item:last-child { border-bottom: none; }
    .footer { text-align: center; font-size: 12px; color: #888; margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; }
    .important { background: #fff3cd; border: 1px solid #ffc107; border-radius: 8px; padding: 15px; margin-top: 20px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <div class="logo">{{.Brand}}</div>
      <div class="clinic-name">{{.ClinicName}}</div>
    </div>
    <div class="content">
      <p>{{.Greeting}},</p>
      <p>{{.Message}}</p>
      <div class="medications">
        <h3>{{.MedicationTitle}}</h3>
        {{- range $i, $m := .Medications}}
        <div class="medication-item">
          <strong>{{inc $i}}. {{$m.MedicationName}}</strong>
          {{- if $m.Dosage}}<br>💊 {{$m.Dosage}}{{end}}
          {{- if $m.Frequency}}<br>⏰ {{$m.Frequency}}{{end}}
          {{- if $m.Duration}}<br>📅 {{$m.Duration}}{{end}}
        </div>
        {{- end}}
      </div>
      <div class="important">
        <p style="margin: 0;">⚠️ {{.Footer}}</p>
      </div>
    </div>
    <div class="footer">
      <p>{{.SentVia}} {{.Brand}}</p>
      <p>© {{.Year}} {{.Brand}} - {{.Rights}}</p>
    </div>
  </div>
</body>
</html>`))
