// Package template manages reusable prescription templates.
package template

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/prescription"
	"github.com/clinicrx/clinic/internal/platform/apperr"
)

// Medication maps to the template_medications table.
type Medication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	TemplateID     uuid.UUID `db:"template_id" json:"template_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         *string   `db:"dosage" json:"dosage"`
	Form           *string   `db:"form" json:"form"`
	Frequency      *string   `db:"frequency" json:"frequency"`
	Duration       *string   `db:"duration" json:"duration"`
	Notes          *string   `db:"notes" json:"notes"`
	SortOrder      int       `db:"sort_order" json:"sort_order"`
}

// Template maps to the prescription_templates table.
type Template struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	TenantID    uuid.UUID    `db:"tenant_id" json:"tenant_id"`
	CreatedBy   *uuid.UUID   `db:"created_by" json:"created_by"`
	Name        string       `db:"name" json:"name"`
	Description *string      `db:"description" json:"description"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	Medications []Medication `db:"-" json:"medications"`
}

func medications(lines []prescription.Line) []Medication {
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

// Lines copies the template's medications by value, in order and
// renumbered from zero, ready to seed a new prescription.
func (t *Template) Lines() []prescription.Line {
	lines := make([]prescription.Line, len(t.Medications))
	for i, m := range t.Medications {
		lines[i] = prescription.Line{
			MedicationName: m.MedicationName,
			Dosage:         m.Dosage,
			Form:           m.Form,
			Frequency:      m.Frequency,
			Duration:       m.Duration,
			Notes:          m.Notes,
			SortOrder:      i,
		}
	}
	return lines
}

type CreateRequest struct {
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Medications []prescription.Line `json:"medications"`
}

func (r *CreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Medications = prescription.Lines(r.Medications)
	var errs []string
	if r.Name == "" {
		errs = append(errs, "name is required")
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
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	Medications []prescription.Line `json:"medications"`
}

func (p *Patch) Validate() error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return apperr.Validation("name must not be empty")
		}
		p.Name = &name
	}
	if p.Medications != nil {
		p.Medications = prescription.Lines(p.Medications)
		if len(p.Medications) == 0 {
			return apperr.Validation("at least one medication with a name is required")
		}
	}
	return nil
}
