package template

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Template, error)
	Update(ctx context.Context, t *Template) error
	ReplaceMedications(ctx context.Context, templateID uuid.UUID, meds []Medication) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// List returns templates newest first. q matches name or description.
	List(ctx context.Context, tenantID uuid.UUID, q string, limit, offset int) ([]*Template, int, error)
}
