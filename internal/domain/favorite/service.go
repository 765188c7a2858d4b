package favorite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func scope(ctx context.Context) (tenantID, principalID uuid.UUID, err error) {
	tenantID, principalID, err = identity.Scope(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := identity.Require(ctx, identity.CanCreatePrescription); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, principalID, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Favorite, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tenantID, principalID, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	f := &Favorite{
		TenantID:       tenantID,
		CreatedBy:      &principalID,
		MedicationName: req.MedicationName,
		Dosage:         req.Dosage,
		Form:           req.Form,
		Frequency:      req.Frequency,
		Duration:       req.Duration,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create favorite: %w", err)
	}
	return f, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, _, err := scope(ctx)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// List returns the clinic's favorites ordered by name.
func (s *Service) List(ctx context.Context) ([]*Favorite, error) {
	tenantID, _, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID)
}

// Suggest returns the favorites matching an in-progress medication name.
func (s *Service) Suggest(ctx context.Context, input string) ([]*Favorite, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Match(all, input), nil
}
