package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/platform/apperr"
)

// Genders accepted on a patient. Unknown gender is stored as NULL.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

type Patient struct {
	ID              uuid.UUID `json:"id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	FullName        string    `json:"full_name"`
	DateOfBirth     *Date     `json:"date_of_birth"`
	Gender          *string   `json:"gender"`
	Phone           *string   `json:"phone"`
	Allergies       *string   `json:"allergies"`
	ChronicDiseases *string   `json:"chronic_diseases"`
	Notes           *string   `json:"notes"`
	IsArchived      bool      `json:"is_archived"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateRequest is the body of a new patient. The tenant always comes from
// the caller.
type CreateRequest struct {
	FullName        string  `json:"full_name"`
	DateOfBirth     *Date   `json:"date_of_birth"`
	Gender          *string `json:"gender"`
	Phone           *string `json:"phone"`
	Allergies       *string `json:"allergies"`
	ChronicDiseases *string `json:"chronic_diseases"`
	Notes           *string `json:"notes"`
}

func (r *CreateRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Gender = normalizeGender(r.Gender)

	var fields []string
	if r.FullName == "" {
		fields = append(fields, "full_name is required")
	}
	if !validGender(r.Gender) {
		fields = append(fields, "gender must be male or female")
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

func (r *CreateRequest) patient(tenantID uuid.UUID) *Patient {
	return &Patient{
		TenantID:        tenantID,
		FullName:        r.FullName,
		DateOfBirth:     r.DateOfBirth,
		Gender:          r.Gender,
		Phone:           r.Phone,
		Allergies:       r.Allergies,
		ChronicDiseases: r.ChronicDiseases,
		Notes:           r.Notes,
	}
}

// Patch carries the fields of a partial update. An empty gender clears it.
type Patch struct {
	FullName        *string `json:"full_name"`
	DateOfBirth     *Date   `json:"date_of_birth"`
	Gender          *string `json:"gender"`
	Phone           *string `json:"phone"`
	Allergies       *string `json:"allergies"`
	ChronicDiseases *string `json:"chronic_diseases"`
	Notes           *string `json:"notes"`
}

func (p *Patch) Validate() error {
	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if name == "" {
			return apperr.Validation("full_name is required")
		}
		p.FullName = &name
	}
	if p.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*p.Gender))
		p.Gender = &g
		if g != "" && !validGender(&g) {
			return apperr.Validation("gender must be male or female")
		}
	}
	return nil
}

// Apply merges the provided fields into pt.
func (p Patch) Apply(pt *Patient) {
	if p.FullName != nil {
		pt.FullName = *p.FullName
	}
	if p.DateOfBirth != nil {
		pt.DateOfBirth = p.DateOfBirth
	}
	if p.Gender != nil {
		pt.Gender = normalizeGender(p.Gender)
	}
	if p.Phone != nil {
		pt.Phone = p.Phone
	}
	if p.Allergies != nil {
		pt.Allergies = p.Allergies
	}
	if p.ChronicDiseases != nil {
		pt.ChronicDiseases = p.ChronicDiseases
	}
	if p.Notes != nil {
		pt.Notes = p.Notes
	}
}

func normalizeGender(g *string) *string {
	if g == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*g))
	if v == "" {
		return nil
	}
	return &v
}

func validGender(g *string) bool {
	return g == nil || *g == GenderMale || *g == GenderFemale
}
