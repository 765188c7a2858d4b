package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/blobstore"
	"github.com/clinicrx/clinic/internal/platform/middleware"
)

// Me is the acting principal as the settings screens see it.
type Me struct {
	PrincipalID  uuid.UUID    `json:"principal_id"`
	Profile      *Profile     `json:"profile"`
	Tenant       *Tenant      `json:"tenant"`
	Roles        []string     `json:"roles"`
	PrimaryRole  string       `json:"primary_role"`
	Capabilities Capabilities `json:"capabilities"`
}

// Upload is an image submitted for a signature or clinic logo.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service implements the profile and clinic settings operations.
type Service struct {
	repo     Repository
	store    blobstore.Store
	resolver *Resolver
	audit    middleware.AuditRecorder
	now      func() time.Time
}

func NewService(repo Repository, store blobstore.Store, resolver *Resolver) *Service {
	return &Service{repo: repo, store: store, resolver: resolver, now: time.Now}
}

// SetAuditRecorder attaches the recorder settings changes are logged to.
func (s *Service) SetAuditRecorder(r middleware.AuditRecorder) {
	s.audit = r
}

func (s *Service) record(ctx context.Context, ev middleware.AuditEvent) {
	if s.audit != nil {
		s.audit.RecordEvent(ctx, ev)
	}
}

func (s *Service) forget(ctx context.Context, principalID uuid.UUID) {
	if s.resolver != nil {
		s.resolver.Forget(ctx, principalID)
	}
}

// Me returns the caller's profile, clinic, roles and capabilities. A caller
// without a profile or tenant still gets an answer with those left nil.
func (s *Service) Me(ctx context.Context) (*Me, error) {
	id := FromContext(ctx)
	if id == nil {
		return nil, ErrNotAuthenticated
	}
	me := &Me{
		PrincipalID:  id.PrincipalID,
		Roles:        id.Roles,
		PrimaryRole:  id.PrimaryRole(),
		Capabilities: id.Capabilities(),
	}
	if id.Profile == nil {
		return me, nil
	}

	p, err := s.repo.GetProfile(ctx, id.PrincipalID)
	if err != nil {
		return nil, err
	}
	if err := s.decorateProfile(ctx, p); err != nil {
		return nil, err
	}
	me.Profile = p

	if p.TenantID != nil {
		t, err := s.repo.GetTenant(ctx, *p.TenantID)
		if err != nil {
			return nil, err
		}
		if err := s.decorateTenant(ctx, t); err != nil {
			return nil, err
		}
		me.Tenant = t
	}
	return me, nil
}

// UpdateProfile applies patch to the caller's own profile and returns the
// merged row.
func (s *Service) UpdateProfile(ctx context.Context, patch ProfilePatch) (*Profile, error) {
	id := FromContext(ctx)
	if id == nil {
		return nil, ErrNotAuthenticated
	}
	if id.Profile == nil {
		return nil, ErrProfileNotFound
	}
	if patch.FullName != nil && strings.TrimSpace(*patch.FullName) == "" {
		return nil, apperr.Validation("full_name is required")
	}

	p, err := s.repo.GetProfile(ctx, id.PrincipalID)
	if err != nil {
		return nil, err
	}
	old := *p
	patch.Apply(p)
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	s.forget(ctx, id.PrincipalID)
	s.record(ctx, middleware.AuditEvent{
		Action:     "update",
		EntityType: "settings",
		EntityID:   p.ID.String(),
		EntityName: p.FullName,
		OldData:    old,
		NewData:    p,
	})
	if err := s.decorateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Profile returns a profile of the caller's tenant, such as the doctor who
// issued a prescription. Profiles of other tenants are not found.
func (s *Service) Profile(ctx context.Context, profileID uuid.UUID) (*Profile, error) {
	tenantID, _, err := Scope(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.TenantID == nil || *p.TenantID != tenantID {
		return nil, apperr.ErrNotFound
	}
	if err := s.decorateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Clinic returns the caller's tenant.
func (s *Service) Clinic(ctx context.Context) (*Tenant, error) {
	tenantID, _, err := Scope(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.decorateTenant(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateClinic applies patch to the caller's tenant.
func (s *Service) UpdateClinic(ctx context.Context, patch TenantPatch) (*Tenant, error) {
	tenantID, _, err := Scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := Require(ctx, CanManageClinic); err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperr.Validation("name is required")
	}

	t, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	old := *t
	patch.Apply(t)
	if err := s.repo.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	s.record(ctx, middleware.AuditEvent{
		Action:     "update",
		EntityType: "settings",
		EntityID:   t.ID.String(),
		EntityName: t.Name,
		OldData:    old,
		NewData:    t,
	})
	if err := s.decorateTenant(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UploadSignature stores the caller's signature image under the tenant's
// signatures folder and points the profile at it.
func (s *Service) UploadSignature(ctx context.Context, up Upload) (*Profile, error) {
	tenantID, principalID, err := Scope(ctx)
	if err != nil {
		return nil, err
	}
	objectPath, err := s.put(ctx, tenantID, blobstore.KindSignature, up)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetProfile(ctx, principalID)
	if err != nil {
		return nil, err
	}
	p.SignaturePath = &objectPath
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	s.forget(ctx, principalID)
	s.record(ctx, middleware.AuditEvent{
		Action:     "update",
		EntityType: "settings",
		EntityID:   p.ID.String(),
		EntityName: p.FullName,
		NewData:    map[string]string{"signature_path": objectPath},
	})
	if err := s.decorateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UploadLogo stores the clinic logo under the tenant's logos folder.
func (s *Service) UploadLogo(ctx context.Context, up Upload) (*Tenant, error) {
	tenantID, _, err := Scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := Require(ctx, CanManageClinic); err != nil {
		return nil, err
	}
	objectPath, err := s.put(ctx, tenantID, blobstore.KindLogo, up)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	t.LogoPath = &objectPath
	if err := s.repo.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	s.record(ctx, middleware.AuditEvent{
		Action:     "update",
		EntityType: "settings",
		EntityID:   t.ID.String(),
		EntityName: t.Name,
		NewData:    map[string]string{"logo_path": objectPath},
	})
	if err := s.decorateTenant(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) put(ctx context.Context, tenantID uuid.UUID, kind blobstore.Kind, up Upload) (string, error) {
	if up.Size > blobstore.MaxImageSize {
		return "", blobstore.ErrFileTooLarge
	}
	ext, err := blobstore.Extension(up.ContentType, up.FileName)
	if err != nil {
		return "", err
	}
	objectPath := blobstore.ObjectPath(tenantID, kind, s.now(), ext)
	err = s.store.Put(ctx, blobstore.Object{
		Path:        objectPath,
		ContentType: up.ContentType,
		Size:        up.Size,
		Body:        up.Body,
	}, true)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", kind, err)
	}
	return objectPath, nil
}

func (s *Service) decorateProfile(ctx context.Context, p *Profile) error {
	var err error
	if p.SignatureURL, err = s.displayURL(ctx, p.SignaturePath); err != nil {
		return fmt.Errorf("sign signature url: %w", err)
	}
	if p.AvatarURL, err = s.displayURL(ctx, p.AvatarPath); err != nil {
		return fmt.Errorf("sign avatar url: %w", err)
	}
	return nil
}

func (s *Service) decorateTenant(ctx context.Context, t *Tenant) error {
	var err error
	if t.LogoURL, err = s.displayURL(ctx, t.LogoPath); err != nil {
		return fmt.Errorf("sign logo url: %w", err)
	}
	return nil
}

// displayURL signs a stored reference. A reference to a vanished object
// shows as no image.
func (s *Service) displayURL(ctx context.Context, stored *string) (string, error) {
	if stored == nil {
		return "", nil
	}
	u, err := blobstore.DisplayURL(ctx, s.store, *stored)
	if errors.Is(err, blobstore.ErrObjectNotFound) {
		return "", nil
	}
	return u, err
}
