package prescription

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/domain/patient"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/db"
	"github.com/clinicrx/clinic/internal/platform/metrics"
	"github.com/clinicrx/clinic/internal/platform/middleware"
	"github.com/clinicrx/clinic/internal/platform/notification"
	"github.com/clinicrx/clinic/internal/platform/render"
)

// Patients looks up a patient of the caller's clinic.
type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Directory supplies the issuing doctor and the clinic for rendering, with
// display URLs already signed.
type Directory interface {
	Profile(ctx context.Context, profileID uuid.UUID) (*identity.Profile, error)
	Clinic(ctx context.Context) (*identity.Tenant, error)
}

type Service struct {
	repo      Repository
	patients  Patients
	directory Directory
	renderer  *render.Renderer
	mail      notification.Client
	metrics   *metrics.Collector
	audit     middleware.AuditRecorder
	onChange  func(tenantID uuid.UUID)

	inTx func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewService(
	repo Repository,
	patients Patients,
	directory Directory,
	renderer *render.Renderer,
	mail notification.Client,
	beginner db.Beginner,
	m *metrics.Collector,
) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		directory: directory,
		renderer:  renderer,
		mail:      mail,
		metrics:   m,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, beginner, fn)
		},
	}
}

func (s *Service) SetAuditRecorder(r middleware.AuditRecorder) {
	s.audit = r
}

// SetChangeHook registers fn to run after any prescription of a tenant
// changes.
func (s *Service) SetChangeHook(fn func(tenantID uuid.UUID)) {
	s.onChange = fn
}

func (s *Service) changed(tenantID uuid.UUID) {
	if s.onChange != nil {
		s.onChange(tenantID)
	}
}

func (s *Service) record(ctx context.Context, action string, p *Prescription, oldData, newData interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.RecordEvent(ctx, middleware.AuditEvent{
		Action:     action,
		EntityType: "prescription",
		EntityID:   p.ID.String(),
		EntityName: p.patientName(),
		OldData:    oldData,
		NewData:    newData,
	})
}

// authorScope returns the tenant and principal of a caller allowed to write
// prescriptions.
func authorScope(ctx context.Context) (tenantID, principalID uuid.UUID, err error) {
	tenantID, principalID, err = identity.Scope(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := identity.Require(ctx, identity.CanCreatePrescription); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, principalID, nil
}

// patient resolves a patient the prescription may be issued to.
func (s *Service) patient(ctx context.Context, id uuid.UUID) (*PatientSummary, error) {
	pt, err := s.patients.Get(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.Validation("patient_id does not match a patient of this clinic")
	}
	if err != nil {
		return nil, err
	}
	if pt.IsArchived {
		return nil, apperr.Validation("patient is archived")
	}
	return &PatientSummary{ID: pt.ID, FullName: pt.FullName, DateOfBirth: pt.DateOfBirth}, nil
}

// Create stores a prescription and its medications in one transaction. The
// issuing doctor is the caller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Prescription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tenantID, principalID, err := authorScope(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	p := &Prescription{
		TenantID:    tenantID,
		PatientID:   req.PatientID,
		DoctorID:    principalID,
		Notes:       req.Notes,
		Patient:     summary,
		Medications: medications(req.Medications),
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PrescriptionsIssued.Inc()
	}
	s.record(ctx, "create", p, nil, p)
	s.changed(tenantID)
	return p, nil
}

// Get returns a prescription of the caller's clinic with its patient and
// medications.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

// Update applies patch. Medications, when given, replace the line items in
// the same transaction as the parent row.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Prescription, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	tenantID, _, err := authorScope(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	old := *p
	old.Medications = append([]Medication(nil), p.Medications...)

	if patch.PatientID != nil && *patch.PatientID != p.PatientID {
		summary, err := s.patient(ctx, *patch.PatientID)
		if err != nil {
			return nil, err
		}
		p.PatientID = summary.ID
		p.Patient = summary
	}
	if patch.Notes != nil {
		p.Notes = patch.Notes
	}
	var meds []Medication
	if patch.Medications != nil {
		meds = medications(patch.Medications)
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		if meds == nil {
			return nil
		}
		return s.repo.ReplaceMedications(ctx, p.ID, meds)
	})
	if err != nil {
		return nil, fmt.Errorf("update prescription: %w", err)
	}
	if meds != nil {
		p.Medications = meds
	}

	s.record(ctx, "update", p, &old, p)
	s.changed(tenantID)
	return p, nil
}

// Delete removes a prescription and its medications.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, _, err := authorScope(ctx)
	if err != nil {
		return err
	}
	p, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	s.record(ctx, "delete", p, p, nil)
	s.changed(tenantID)
	return nil
}

// List returns prescriptions newest first with patients and medications.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return nil, 0, err
	}
	f.Q = strings.TrimSpace(f.Q)
	return s.repo.List(ctx, tenantID, f, limit, offset)
}

// ForPatient lists the prescriptions of one patient.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.List(ctx, Filter{PatientID: &patientID}, limit, offset)
}
