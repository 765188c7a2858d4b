package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/metrics"
	"github.com/clinicrx/clinic/internal/platform/middleware"
)

// Service implements patient management for the caller's clinic.
type Service struct {
	repo     Repository
	metrics  *metrics.Collector
	audit    middleware.AuditRecorder
	onChange func(tenantID uuid.UUID)
}

func NewService(repo Repository, m *metrics.Collector) *Service {
	return &Service{repo: repo, metrics: m}
}

func (s *Service) SetAuditRecorder(r middleware.AuditRecorder) {
	s.audit = r
}

// SetChangeHook registers fn to run after any patient of a tenant changes.
func (s *Service) SetChangeHook(fn func(tenantID uuid.UUID)) {
	s.onChange = fn
}

func (s *Service) changed(tenantID uuid.UUID) {
	if s.onChange != nil {
		s.onChange(tenantID)
	}
}

func (s *Service) record(ctx context.Context, action string, p *Patient, oldData, newData interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.RecordEvent(ctx, middleware.AuditEvent{
		Action:     action,
		EntityType: "patient",
		EntityID:   p.ID.String(),
		EntityName: p.FullName,
		OldData:    oldData,
		NewData:    newData,
	})
}

// scope checks the capability and returns the caller's tenant.
func scope(ctx context.Context) (uuid.UUID, error) {
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if err := identity.Require(ctx, identity.CanManagePatients); err != nil {
		return uuid.Nil, err
	}
	return tenantID, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tenantID, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	p := req.patient(tenantID)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PatientsCreatedTotal.Inc()
	}
	s.record(ctx, "create", p, nil, p)
	s.changed(tenantID)
	return p, nil
}

// Get returns a patient of the caller's clinic, archived or not.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	tenantID, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

// Update applies patch and returns the merged patient.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Patient, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	tenantID, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	old := *p
	patch.Apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	s.record(ctx, "update", p, &old, p)
	s.changed(tenantID)
	return p, nil
}

// Archive hides a patient from listings and searches. Its prescriptions
// are kept.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	tenantID, err := scope(ctx)
	if err != nil {
		return err
	}
	p, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, tenantID, id); err != nil {
		return fmt.Errorf("archive patient: %w", err)
	}
	s.record(ctx, "delete", p, p, nil)
	s.changed(tenantID)
	return nil
}

// List returns non-archived patients newest first. A blank q lists all.
func (s *Service) List(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	tenantID, err := scope(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, tenantID, strings.TrimSpace(q), limit, offset)
}
