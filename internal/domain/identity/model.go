package identity

import (
	"time"

	"github.com/google/uuid"
)

// Roles, in decreasing order of privilege.
const (
	RoleSuperAdmin  = "super_admin"
	RoleClinicAdmin = "clinic_admin"
	RoleDoctor      = "doctor"
	RoleAssistant   = "assistant"
)

var roleOrder = []string{RoleSuperAdmin, RoleClinicAdmin, RoleDoctor, RoleAssistant}

// ValidRole reports whether role is one of the four known roles.
func ValidRole(role string) bool {
	for _, r := range roleOrder {
		if r == role {
			return true
		}
	}
	return false
}

// SortRoles returns the known roles in roles, deduplicated and ordered by
// privilege. Unknown values are dropped.
func SortRoles(roles []string) []string {
	held := make(map[string]bool, len(roles))
	for _, r := range roles {
		held[r] = true
	}
	out := make([]string, 0, len(roles))
	for _, r := range roleOrder {
		if held[r] {
			out = append(out, r)
		}
	}
	return out
}

// PrimaryRole is the most privileged role held, or "" when none.
func PrimaryRole(roles []string) string {
	sorted := SortRoles(roles)
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0]
}

// Capability is a permission derived from roles.
type Capability string

const (
	CanManageClinic       Capability = "manage_clinic"
	CanCreatePrescription Capability = "create_prescription"
	CanManagePatients     Capability = "manage_patients"
	CanManageTemplates    Capability = "manage_templates"
	CanViewStatistics     Capability = "view_statistics"
)

// capabilityRoles lists the roles granting each capability.
var capabilityRoles = map[Capability][]string{
	CanManageClinic:       {RoleSuperAdmin, RoleClinicAdmin},
	CanCreatePrescription: {RoleSuperAdmin, RoleClinicAdmin, RoleDoctor},
	CanManagePatients:     {RoleSuperAdmin, RoleClinicAdmin, RoleDoctor, RoleAssistant},
	CanManageTemplates:    {RoleSuperAdmin, RoleClinicAdmin, RoleDoctor},
	CanViewStatistics:     {RoleSuperAdmin, RoleClinicAdmin, RoleDoctor},
}

// RolesGranting returns the roles that grant c.
func RolesGranting(c Capability) []string {
	return capabilityRoles[c]
}

// Capabilities is the permission set of a principal, OR'd across its roles.
type Capabilities struct {
	CanManageClinic       bool `json:"can_manage_clinic"`
	CanCreatePrescription bool `json:"can_create_prescription"`
	CanManagePatients     bool `json:"can_manage_patients"`
	CanManageTemplates    bool `json:"can_manage_templates"`
	CanViewStatistics     bool `json:"can_view_statistics"`
}

// CapabilitiesFor derives capabilities from roles. No roles means no
// capabilities.
func CapabilitiesFor(roles []string) Capabilities {
	return Capabilities{
		CanManageClinic:       grants(roles, CanManageClinic),
		CanCreatePrescription: grants(roles, CanCreatePrescription),
		CanManagePatients:     grants(roles, CanManagePatients),
		CanManageTemplates:    grants(roles, CanManageTemplates),
		CanViewStatistics:     grants(roles, CanViewStatistics),
	}
}

func grants(roles []string, c Capability) bool {
	for _, held := range roles {
		for _, r := range capabilityRoles[c] {
			if held == r {
				return true
			}
		}
	}
	return false
}

// Tenant maps to the tenants table.
type Tenant struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	Address            *string    `db:"address" json:"address,omitempty"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	LogoPath           *string    `db:"logo_path" json:"-"`
	LogoURL            string     `db:"-" json:"logo_url,omitempty"`
	FooterNote         *string    `db:"footer_note" json:"footer_note,omitempty"`
	SubscriptionStatus string     `db:"subscription_status" json:"subscription_status"`
	TrialEndsAt        *time.Time `db:"trial_ends_at" json:"trial_ends_at"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile maps to the profiles table. ID is the principal id.
type Profile struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	TenantID      *uuid.UUID `db:"tenant_id" json:"tenant_id"`
	FullName      string     `db:"full_name" json:"full_name"`
	Specialty     *string    `db:"specialty" json:"specialty,omitempty"`
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	SignaturePath *string    `db:"signature_path" json:"-"`
	SignatureURL  string     `db:"-" json:"signature_url,omitempty"`
	AvatarPath    *string    `db:"avatar_path" json:"-"`
	AvatarURL     string     `db:"-" json:"avatar_url,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfilePatch carries the fields of a partial profile update.
type ProfilePatch struct {
	FullName      *string `json:"full_name"`
	Specialty     *string `json:"specialty"`
	LicenseNumber *string `json:"license_number"`
	Phone         *string `json:"phone"`
}

// Apply merges the provided fields into p.
func (pp ProfilePatch) Apply(p *Profile) {
	if pp.FullName != nil {
		p.FullName = *pp.FullName
	}
	if pp.Specialty != nil {
		p.Specialty = pp.Specialty
	}
	if pp.LicenseNumber != nil {
		p.LicenseNumber = pp.LicenseNumber
	}
	if pp.Phone != nil {
		p.Phone = pp.Phone
	}
}

// TenantPatch carries the fields of a partial clinic update.
type TenantPatch struct {
	Name       *string `json:"name"`
	Address    *string `json:"address"`
	Phone      *string `json:"phone"`
	FooterNote *string `json:"footer_note"`
}

// Apply merges the provided fields into t.
func (tp TenantPatch) Apply(t *Tenant) {
	if tp.Name != nil {
		t.Name = *tp.Name
	}
	if tp.Address != nil {
		t.Address = tp.Address
	}
	if tp.Phone != nil {
		t.Phone = tp.Phone
	}
	if tp.FooterNote != nil {
		t.FooterNote = tp.FooterNote
	}
}

// Identity is the resolved acting principal: its profile, when one exists,
// and its roles in privilege order.
type Identity struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Profile     *Profile  `json:"profile"`
	Roles       []string  `json:"roles"`
}

// TenantID returns the tenant the principal acts for. A missing profile or a
// profile without a tenant is refused rather than defaulted.
func (i *Identity) TenantID() (uuid.UUID, error) {
	if i.Profile == nil {
		return uuid.Nil, ErrProfileNotFound
	}
	if i.Profile.TenantID == nil {
		return uuid.Nil, ErrNoTenant
	}
	return *i.Profile.TenantID, nil
}

func (i *Identity) PrimaryRole() string { return PrimaryRole(i.Roles) }

func (i *Identity) Capabilities() Capabilities { return CapabilitiesFor(i.Roles) }

// Can reports whether the principal holds capability c.
func (i *Identity) Can(c Capability) bool { return grants(i.Roles, c) }

// DisplayName is the profile name, or "" without a profile.
func (i *Identity) DisplayName() string {
	if i.Profile == nil {
		return ""
	}
	return i.Profile.FullName
}
