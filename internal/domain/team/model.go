// Package team administers the staff of a clinic: invitations, role
// changes and removals.
package team

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
)

var (
	ErrSelfChange     = apperr.Validation("you cannot change or remove your own membership")
	ErrRoleNotAllowed = apperr.Validation("role is not assignable")
)

// Member is a principal linked to the clinic.
type Member struct {
	ID            uuid.UUID `json:"id"`
	FullName      string    `json:"full_name"`
	Email         *string   `json:"email"`
	Specialty     *string   `json:"specialty,omitempty"`
	LicenseNumber *string   `json:"license_number,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Roles         []string  `json:"roles"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
}

type InviteRequest struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	FullName      string  `json:"full_name"`
	Role          string  `json:"role"`
	Specialty     *string `json:"specialty"`
	LicenseNumber *string `json:"license_number"`
	Phone         *string `json:"phone"`
	Language      string  `json:"language"`
}

func (r *InviteRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	var errs []string
	if r.Email == "" {
		errs = append(errs, "email is required")
	}
	if r.FullName == "" {
		errs = append(errs, "full_name is required")
	}
	if !identity.ValidRole(r.Role) {
		errs = append(errs, "role is invalid")
	}
	if len(errs) > 0 {
		return apperr.Validation(errs...)
	}
	return nil
}

type RoleChange struct {
	Role string `json:"role"`
}

// assignable reports whether a caller holding roles may grant role. Only a
// super admin grants super_admin.
func assignable(callerRoles []string, role string) bool {
	if !identity.ValidRole(role) {
		return false
	}
	if role != identity.RoleSuperAdmin {
		return true
	}
	for _, r := range callerRoles {
		if r == identity.RoleSuperAdmin {
			return true
		}
	}
	return false
}
