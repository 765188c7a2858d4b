// Package render turns a prescription, its issuing doctor and the clinic
// into printable HTML, a single-page image PDF, or a mail function payload.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/metrics"
	"github.com/clinicrx/clinic/internal/platform/telemetry"
)

// Document is everything a rendered prescription shows. Image URLs are
// signed display URLs, never storage paths.
type Document struct {
	PrescriptionID string
	IssuedAt       time.Time
	Notes          string
	Patient        Patient
	Medications    []Medication
	Doctor         Doctor
	Clinic         Clinic
}

type Patient struct {
	FullName    string
	DateOfBirth *time.Time
}

// Medication is a line item in display order.
type Medication struct {
	Name      string
	Dosage    string
	Form      string
	Frequency string
	Duration  string
}

type Doctor struct {
	FullName      string
	Specialty     string
	LicenseNumber string
	SignatureURL  string
}

type Clinic struct {
	Name       string
	Address    string
	Phone      string
	LogoURL    string
	FooterNote string
}

// Renderer produces prescription documents.
type Renderer struct {
	catalog    *i18n.Catalog
	rasterizer Rasterizer
	metrics    *metrics.Collector
}

// New returns a Renderer. rasterizer may be nil, in which case PDF returns
// ErrRasterizerUnavailable.
func New(catalog *i18n.Catalog, rasterizer Rasterizer, m *metrics.Collector) *Renderer {
	return &Renderer{catalog: catalog, rasterizer: rasterizer, metrics: m}
}

func (r *Renderer) count(target, outcome string) {
	if r.metrics != nil {
		r.metrics.DocumentsRendered.WithLabelValues(target, outcome).Inc()
	}
}

type medicationRow struct {
	Number    int
	Name      string
	Dosage    string
	Form      string
	Frequency string
	Duration  string
}

type documentView struct {
	Lang        string
	Dir         string
	Start       string
	End         string
	Title       string
	DoctorLine  string
	Specialty   string
	License     string
	Clinic      Clinic
	Date        string
	Patient     string
	DateOfBirth string
	Medications []medicationRow
	Notes       string
	Signature   string
	Labels      map[string]string
}

func (r *Renderer) view(doc Document, lang string) documentView {
	lang = r.catalog.Normalize(lang)
	t := func(key string) string { return r.catalog.Text(key, lang) }

	v := documentView{
		Lang:       lang,
		Dir:        i18n.Dir(lang),
		Start:      "left",
		End:        "right",
		Title:      t("doc.title"),
		DoctorLine: t("doc.doctor_prefix") + " " + doc.Doctor.FullName,
		Specialty:  doc.Doctor.Specialty,
		License:    doc.Doctor.LicenseNumber,
		Clinic:     doc.Clinic,
		Date:       r.catalog.FormatDate(doc.IssuedAt, lang),
		Patient:    doc.Patient.FullName,
		Notes:      doc.Notes,
		Signature:  doc.Doctor.SignatureURL,
		Labels: map[string]string{
			"license":     t("doc.license"),
			"patient":     t("doc.patient"),
			"dob":         t("doc.date_of_birth"),
			"medications": t("doc.medications"),
			"number":      t("doc.col_number"),
			"name":        t("doc.col_name"),
			"dosage":      t("doc.col_dosage"),
			"form":        t("doc.col_form"),
			"frequency":   t("doc.col_frequency"),
			"duration":    t("doc.col_duration"),
			"notes":       t("doc.notes"),
			"signature":   t("doc.signature"),
		},
	}
	if v.Dir == "rtl" {
		v.Start, v.End = "right", "left"
	}
	if doc.Patient.DateOfBirth != nil {
		v.DateOfBirth = r.catalog.FormatDate(*doc.Patient.DateOfBirth, lang)
	}
	for i, m := range doc.Medications {
		v.Medications = append(v.Medications, medicationRow{
			Number:    i + 1,
			Name:      m.Name,
			Dosage:    dash(m.Dosage),
			Form:      r.catalog.Label(i18n.CategoryForm, m.Form, lang),
			Frequency: r.catalog.Label(i18n.CategoryFrequency, m.Frequency, lang),
			Duration:  dash(m.Duration),
		})
	}
	return v
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func tracerStart(ctx context.Context, name string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name)
}

// HTML renders the printable document in lang.
func (r *Renderer) HTML(ctx context.Context, doc Document, lang string) (string, error) {
	_, span := tracerStart(ctx, "render.html")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.prescription_id", doc.PrescriptionID), attribute.String("clinic.lang", lang))

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, r.view(doc, lang)); err != nil {
		r.count("html", "error")
		span.RecordError(err)
		return "", fmt.Errorf("render prescription html: %w", err)
	}
	r.count("html", "ok")
	return buf.String(), nil
}

var documentTmpl = template.Must(template.New("prescription").Parse(`<!DOCTYPE html>
<html dir="{{.Dir}}" lang="{{.Lang}}">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  body { font-family: 'Cairo', 'Tajawal', sans-serif; padding: 20px; direction: {{.Dir}}; color: #000; background: #fff; }
  .prescription-header { text-align: center; border-bottom: 2px solid #0d9488; padding-bottom: 16px; margin-bottom: 20px; }
  .logo { max-height: 64px; margin-bottom: 8px; }
  .doctor-name { font-size: 24px; font-weight: bold; color: #0d9488; }
  .specialty { color: #666; margin-top: 4px; }
  .license { font-size: 13px; color: #666; margin-top: 4px; }
  .clinic-info { font-size: 12px; color: #666; margin-top: 8px; }
  .date { text-align: {{.End}}; font-size: 13px; color: #666; margin-bottom: 16px; }
  .patient-info { background: #f5f5f5; padding: 12px; border-radius: 8px; margin-bottom: 20px; }
  .patient-name { font-weight: bold; font-size: 18px; }
  .medications-table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
  .medications-table th, .medications-table td { border: 1px solid #ddd; padding: 10px; text-align: {{.Start}}; }
  .medications-table th { background: #0d9488; color: white; }
  .notes { border: 1px solid #ddd; border-radius: 8px; padding: 12px; margin-bottom: 20px; }
  .signature { margin-top: 40px; text-align: {{.End}}; }
  .signature img { height: 64px; }
  .footer { border-top: 1px solid #ddd; padding-top: 16px; margin-top: 40px; text-align: center; font-size: 12px; color: #666; }
</style>
</head>
<body>
<div class="prescription-header">
  {{- if .Clinic.LogoURL}}
  <img class="logo" src="{{.Clinic.LogoURL}}" alt="{{.Clinic.Name}}">
  {{- end}}
  <div class="doctor-name">{{.DoctorLine}}</div>
  {{- if .Specialty}}
  <div class="specialty">{{.Specialty}}</div>
  {{- end}}
  {{- if .License}}
  <div class="license">{{index .Labels "license"}}: {{.License}}</div>
  {{- end}}
  {{- if .Clinic.Name}}
  <div class="clinic-info">{{.Clinic.Name}}{{if .Clinic.Address}} • {{.Clinic.Address}}{{end}}{{if .Clinic.Phone}} • {{.Clinic.Phone}}{{end}}</div>
  {{- end}}
</div>
<div class="date">{{.Date}}</div>
<div class="patient-info">
  <div>{{index .Labels "patient"}}:</div>
  <div class="patient-name">{{.Patient}}</div>
  {{- if .DateOfBirth}}
  <div>{{index .Labels "dob"}}: {{.DateOfBirth}}</div>
  {{- end}}
</div>
<div>{{index .Labels "medications"}}:</div>
<table class="medications-table">
  <thead>
    <tr>
      <th>{{index .Labels "number"}}</th>
      <th>{{index .Labels "name"}}</th>
      <th>{{index .Labels "dosage"}}</th>
      <th>{{index .Labels "form"}}</th>
      <th>{{index .Labels "frequency"}}</th>
      <th>{{index .Labels "duration"}}</th>
    </tr>
  </thead>
  <tbody>
    {{- range .Medications}}
    <tr>
      <td>{{.Number}}</td>
      <td>{{.Name}}</td>
      <td>{{.Dosage}}</td>
      <td>{{.Form}}</td>
      <td>{{.Frequency}}</td>
      <td>{{.Duration}}</td>
    </tr>
    {{- end}}
  </tbody>
</table>
{{- if .Notes}}
<div class="notes">
  <div>{{index .Labels "notes"}}:</div>
  <div>{{.Notes}}</div>
</div>
{{- end}}
<div class="signature">
  <div>{{index .Labels "signature"}}</div>
  {{- if .Signature}}
  <img src="{{.Signature}}" alt="Signature">
  {{- end}}
</div>
{{- if .Clinic.FooterNote}}
<div class="footer">{{.Clinic.FooterNote}}</div>
{{- end}}
</body>
</html>`))
