// Package favorite keeps a clinic's favorite medications, the quick-fill
// source for prescription authoring.
package favorite

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/prescription"
	"github.com/clinicrx/clinic/internal/platform/apperr"
)

// Favorite maps to the favorite_medications table.
type Favorite struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	TenantID       uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	CreatedBy      *uuid.UUID `db:"created_by" json:"created_by"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         *string    `db:"dosage" json:"dosage"`
	Form           *string    `db:"form" json:"form"`
	Frequency      *string    `db:"frequency" json:"frequency"`
	Duration       *string    `db:"duration" json:"duration"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Line fills a prescription line item from the favorite.
func (f *Favorite) Line() prescription.Line {
	return prescription.Line{
		MedicationName: f.MedicationName,
		Dosage:         f.Dosage,
		Form:           f.Form,
		Frequency:      f.Frequency,
		Duration:       f.Duration,
	}
}

type CreateRequest struct {
	MedicationName string  `json:"medication_name"`
	Dosage         *string `json:"dosage"`
	Form           *string `json:"form"`
	Frequency      *string `json:"frequency"`
	Duration       *string `json:"duration"`
}

func (r *CreateRequest) Validate() error {
	r.MedicationName = strings.TrimSpace(r.MedicationName)
	if r.MedicationName == "" {
		return apperr.Validation("medication_name is required")
	}
	return nil
}

// Match returns the favorites whose name contains input, ignoring case, in
// their given order. A blank input matches nothing.
func Match(favorites []*Favorite, input string) []*Favorite {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return nil
	}
	var out []*Favorite
	for _, f := range favorites {
		if strings.Contains(strings.ToLower(f.MedicationName), needle) {
			out = append(out, f)
		}
	}
	return out
}
