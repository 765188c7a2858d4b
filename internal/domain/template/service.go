package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/domain/prescription"
	"github.com/clinicrx/clinic/internal/platform/db"
	"github.com/clinicrx/clinic/internal/platform/middleware"
)

type Service struct {
	repo  Repository
	audit middleware.AuditRecorder

	inTx func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewService(repo Repository, beginner db.Beginner) *Service {
	return &Service{
		repo: repo,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, beginner, fn)
		},
	}
}

func (s *Service) SetAuditRecorder(r middleware.AuditRecorder) {
	s.audit = r
}

func (s *Service) record(ctx context.Context, action string, t *Template, oldData, newData interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.RecordEvent(ctx, middleware.AuditEvent{
		Action:     action,
		EntityType: "template",
		EntityID:   t.ID.String(),
		EntityName: t.Name,
		OldData:    oldData,
		NewData:    newData,
	})
}

func scope(ctx context.Context) (tenantID, principalID uuid.UUID, err error) {
	tenantID, principalID, err = identity.Scope(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := identity.Require(ctx, identity.CanManageTemplates); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, principalID, nil
}

// Create stores a template and its medications in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tenantID, principalID, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	t := &Template{
		TenantID:    tenantID,
		CreatedBy:   &principalID,
		Name:        req.Name,
		Description: req.Description,
		Medications: medications(req.Medications),
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	s.record(ctx, "create", t, nil, t)
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	tenantID, _, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Template, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	tenantID, _, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	old := *t
	old.Medications = append([]Medication(nil), t.Medications...)

	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Description != nil {
		t.Description = patch.Description
	}
	var meds []Medication
	if patch.Medications != nil {
		meds = medications(patch.Medications)
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		if meds == nil {
			return nil
		}
		return s.repo.ReplaceMedications(ctx, t.ID, meds)
	})
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	if meds != nil {
		t.Medications = meds
	}
	s.record(ctx, "update", t, &old, t)
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, _, err := scope(ctx)
	if err != nil {
		return err
	}
	t, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	s.record(ctx, "delete", t, t, nil)
	return nil
}

func (s *Service) List(ctx context.Context, q string, limit, offset int) ([]*Template, int, error) {
	tenantID, _, err := scope(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, tenantID, strings.TrimSpace(q), limit, offset)
}

// Apply returns the template's medications copied by value for a new
// prescription. Later edits to the template do not affect them.
func (s *Service) Apply(ctx context.Context, id uuid.UUID) ([]prescription.Line, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Lines(), nil
}
