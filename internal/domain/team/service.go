package team

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/domain/account"
	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/db"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/middleware"
	"github.com/clinicrx/clinic/internal/platform/saga"
)

// Principals creates and deletes identities at the identity provider.
type Principals interface {
	CreatePrincipal(ctx context.Context, email, password string) (*account.Account, error)
	DeletePrincipal(ctx context.Context, id uuid.UUID) error
}

// Messenger delivers plain transactional email.
type Messenger interface {
	SendMessage(ctx context.Context, to, subject, body string) error
}

// Forgetter drops cached identity resolutions.
type Forgetter interface {
	Forget(ctx context.Context, principalID uuid.UUID)
}

// Clinics reads the caller's clinic.
type Clinics interface {
	Clinic(ctx context.Context) (*identity.Tenant, error)
}

type Service struct {
	repo       Repository
	principals Principals
	clinics    Clinics
	messenger  Messenger
	forgetter  Forgetter
	catalog    *i18n.Catalog
	logger     zerolog.Logger
	audit      middleware.AuditRecorder

	inTx func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewService(
	repo Repository,
	principals Principals,
	clinics Clinics,
	messenger Messenger,
	forgetter Forgetter,
	catalog *i18n.Catalog,
	beginner db.Beginner,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		principals: principals,
		clinics:    clinics,
		messenger:  messenger,
		forgetter:  forgetter,
		catalog:    catalog,
		logger:     logger,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, beginner, fn)
		},
	}
}

func (s *Service) SetAuditRecorder(r middleware.AuditRecorder) {
	s.audit = r
}

func (s *Service) record(ctx context.Context, action string, m *Member, oldData, newData interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.RecordEvent(ctx, middleware.AuditEvent{
		Action:     action,
		EntityType: "user",
		EntityID:   m.ID.String(),
		EntityName: m.FullName,
		OldData:    oldData,
		NewData:    newData,
	})
}

func (s *Service) forget(ctx context.Context, principalID uuid.UUID) {
	if s.forgetter != nil {
		s.forgetter.Forget(ctx, principalID)
	}
}

func scope(ctx context.Context) (tenantID, principalID uuid.UUID, err error) {
	tenantID, principalID, err = identity.Scope(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := identity.Require(ctx, identity.CanManageClinic); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, principalID, nil
}

func callerRoles(ctx context.Context) []string {
	if id := identity.FromContext(ctx); id != nil {
		return id.Roles
	}
	return nil
}

// List returns the clinic's members, oldest first.
func (s *Service) List(ctx context.Context) ([]*Member, error) {
	tenantID, _, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID)
}

// Invite creates the invitee's identity, then links its profile and role to
// the clinic in one transaction. If linking fails the identity is deleted
// again. The invitation email is best effort.
func (s *Service) Invite(ctx context.Context, req InviteRequest) (*Member, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tenantID, _, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !assignable(callerRoles(ctx), req.Role) {
		return nil, ErrRoleNotAllowed
	}

	var acc *account.Account
	profile := &identity.Profile{
		TenantID:      &tenantID,
		FullName:      req.FullName,
		Specialty:     req.Specialty,
		LicenseNumber: req.LicenseNumber,
		Phone:         req.Phone,
	}

	err = saga.New("team.invite", middleware.LoggerFrom(ctx, s.logger),
		saga.Step{
			Name: "create_principal",
			Run: func(ctx context.Context) error {
				var err error
				acc, err = s.principals.CreatePrincipal(ctx, req.Email, req.Password)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.principals.DeletePrincipal(ctx, acc.ID)
			},
		},
		saga.Step{
			Name: "link_membership",
			Run: func(ctx context.Context) error {
				profile.ID = acc.ID
				return s.inTx(ctx, func(ctx context.Context) error {
					if err := s.repo.Link(ctx, profile); err != nil {
						return fmt.Errorf("link profile: %w", err)
					}
					return s.repo.SetRole(ctx, acc.ID, req.Role)
				})
			},
		},
	).Execute(ctx)
	if err != nil {
		return nil, err
	}

	m := &Member{
		ID:            acc.ID,
		FullName:      profile.FullName,
		Email:         &acc.Email,
		Specialty:     profile.Specialty,
		LicenseNumber: profile.LicenseNumber,
		Phone:         profile.Phone,
		Roles:         []string{req.Role},
		Role:          req.Role,
		CreatedAt:     profile.CreatedAt,
	}
	s.record(ctx, "create", m, nil, m)
	s.notify(ctx, acc.Email, req.Language)
	return m, nil
}

func (s *Service) notify(ctx context.Context, to, lang string) {
	if s.messenger == nil {
		return
	}
	clinic, err := s.clinics.Clinic(ctx)
	if err != nil {
		lg := middleware.LoggerFrom(ctx, s.logger)
		lg.Warn().Err(err).Msg("invite email skipped: clinic lookup failed")
		return
	}
	lang = s.catalog.Normalize(lang)
	subject := s.catalog.Text("mail.invite_subject", lang, clinic.Name)
	body := s.catalog.Text("mail.invite_body", lang, clinic.Name)
	if err := s.messenger.SendMessage(ctx, to, subject, body); err != nil {
		lg := middleware.LoggerFrom(ctx, s.logger)
		lg.Warn().Err(err).Str("tenant_id", clinic.ID.String()).Msg("invite email failed")
	}
}

// member loads a member other than the caller. Super admins are only
// managed by super admins.
func (s *Service) member(ctx context.Context, userID uuid.UUID) (uuid.UUID, *Member, error) {
	tenantID, principalID, err := scope(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if userID == principalID {
		return uuid.Nil, nil, ErrSelfChange
	}
	m, err := s.repo.Get(ctx, tenantID, userID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if identity.PrimaryRole(m.Roles) == identity.RoleSuperAdmin && !assignable(callerRoles(ctx), identity.RoleSuperAdmin) {
		return uuid.Nil, nil, apperr.ErrForbidden
	}
	return tenantID, m, nil
}

// ChangeRole replaces the role of another member.
func (s *Service) ChangeRole(ctx context.Context, userID uuid.UUID, change RoleChange) (*Member, error) {
	if !identity.ValidRole(change.Role) {
		return nil, ErrRoleNotAllowed
	}
	_, m, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !assignable(callerRoles(ctx), change.Role) {
		return nil, ErrRoleNotAllowed
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.SetRole(ctx, userID, change.Role)
	})
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	old := map[string]interface{}{"roles": m.Roles}
	m.Roles = []string{change.Role}
	m.Role = change.Role
	s.forget(ctx, userID)
	s.record(ctx, "update", m, old, map[string]interface{}{"roles": m.Roles})
	return m, nil
}

// Remove detaches another member from the clinic. The identity itself is
// kept.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID) error {
	tenantID, m, err := s.member(ctx, userID)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.Remove(ctx, tenantID, userID)
	})
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.forget(ctx, userID)
	s.record(ctx, "delete", m, m, nil)
	return nil
}
