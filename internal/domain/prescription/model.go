// Package prescription manages prescriptions and their medication line
// items, and produces their printable, PDF and email renditions.
package prescription

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/patient"
	"github.com/clinicrx/clinic/internal/platform/apperr"
)

// Medication forms and frequencies offered by the authoring form. Other
// values are stored as given and printed raw.
var (
	Forms       = []string{"tablet", "capsule", "syrup", "injection", "cream", "drops", "suppository", "inhaler"}
	Frequencies = []string{"once_daily", "twice_daily", "three_times", "four_times", "before_meals", "after_meals", "as_needed"}
)

// Medication maps to the prescription_medications table.
type Medication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         *string   `db:"dosage" json:"dosage"`
	Form           *string   `db:"form" json:"form"`
	Frequency      *string   `db:"frequency" json:"frequency"`
	Duration       *string   `db:"duration" json:"duration"`
	Notes          *string   `db:"notes" json:"notes"`
	SortOrder      int       `db:"sort_order" json:"sort_order"`
}

// Line is a medication as entered, before it belongs to a prescription.
// Templates produce and accept the same shape.
type Line struct {
	MedicationName string  `json:"medication_name"`
	Dosage         *string `json:"dosage,omitempty"`
	Form           *string `json:"form,omitempty"`
	Frequency      *string `json:"frequency,omitempty"`
	Duration       *string `json:"duration,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	SortOrder      int     `json:"sort_order"`
}

// Lines drops entries without a medication name and renumbers the rest from
// zero in their given order.
func Lines(in []Line) []Line {
	out := make([]Line, 0, len(in))
	for _, l := range in {
		l.MedicationName = strings.TrimSpace(l.MedicationName)
		if l.MedicationName == "" {
			continue
		}
		l.SortOrder = len(out)
		out = append(out, l)
	}
	return out
}

func medications(lines []Line) []Medication {
	meds := make([]Medication, len(lines))
	for i, l := range lines {
		meds[i] = Medication{
			MedicationName: l.MedicationName,
			Dosage:         l.Dosage,
			Form:           l.Form,
			Frequency:      l.Frequency,
			Duration:       l.Duration,
			Notes:          l.Notes,
			SortOrder:      l.SortOrder,
		}
	}
	return meds
}

// PatientSummary is the patient shown alongside a prescription.
type PatientSummary struct {
	ID          uuid.UUID     `json:"id"`
	FullName    string        `json:"full_name"`
	DateOfBirth *patient.Date `json:"date_of_birth"`
}

// Prescription maps to the prescriptions table. Patient and Medications are
// loaded with it.
type Prescription struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	TenantID    uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	Notes       *string         `db:"notes" json:"notes"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	Patient     *PatientSummary `db:"-" json:"patient,omitempty"`
	Medications []Medication    `db:"-" json:"medications"`
}

func (p *Prescription) patientName() string {
	if p.Patient == nil {
		return ""
	}
	return p.Patient.FullName
}

// CreateRequest is the body of a new prescription. tenant_id and doctor_id
// are never taken from the request.
type CreateRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	Notes       *string   `json:"notes"`
	Medications []Line    `json:"medications"`
}

// Validate filters the line items and checks the required fields.
func (r *CreateRequest) Validate() error {
	r.Medications = Lines(r.Medications)
	var errs []string
	if r.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if len(r.Medications) == 0 {
		errs = append(errs, "at least one medication with a name is required")
	}
	if len(errs) > 0 {
		return apperr.Validation(errs...)
	}
	return nil
}

// Patch is a partial update. A non-nil Medications replaces every line item.
type Patch struct {
	PatientID   *uuid.UUID `json:"patient_id"`
	Notes       *string    `json:"notes"`
	Medications []Line     `json:"medications"`
}

func (p *Patch) Validate() error {
	if p.PatientID != nil && *p.PatientID == uuid.Nil {
		return apperr.Validation("patient_id must not be empty")
	}
	if p.Medications != nil {
		p.Medications = Lines(p.Medications)
		if len(p.Medications) == 0 {
			return apperr.Validation("at least one medication with a name is required")
		}
	}
	return nil
}

// Filter narrows a listing. Q matches the patient name.
type Filter struct {
	PatientID *uuid.UUID
	Q         string
}

// EmailRequest asks for a prescription to be mailed.
type EmailRequest struct {
	RecipientEmail string `json:"recipient_email"`
	Language       string `json:"language"`
}
