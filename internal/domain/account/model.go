package account

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/notification"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ResetTTL bounds how long a password reset code stays usable.
const ResetTTL = time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidResetToken  = errors.New("reset code is invalid or expired")
	ErrNoSession          = errors.New("no active session")
)

// Account is a principal managed by this server's identity provider.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PasswordReset is a pending reset. Only the bcrypt hash of the secret is
// stored.
type PasswordReset struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the reset can still be redeemed at now.
func (r *PasswordReset) Usable(now time.Time) bool {
	return r.UsedAt == nil && now.Before(r.ExpiresAt)
}

type SignUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	ClinicName string `json:"clinic_name,omitempty"`
}

func (r *SignUpRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.ClinicName = strings.TrimSpace(r.ClinicName)

	var fields []string
	if !validEmail(r.Email) {
		fields = append(fields, "email is invalid")
	}
	if len(r.Password) < MinPasswordLength {
		fields = append(fields, "password must be at least 6 characters")
	}
	if r.FullName == "" {
		fields = append(fields, "full_name is required")
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetRequest struct {
	Email    string `json:"email"`
	Language string `json:"language,omitempty"`
}

type ResetConfirm struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

type PasswordUpdate struct {
	Password string `json:"password"`
}

// User is the public view of an account.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// SignUpResult describes what sign-up created.
type SignUpResult struct {
	User     User       `json:"user"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	Roles    []string   `json:"roles"`
}

// Session is returned by sign-in.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	return notification.ValidEmail(s)
}

func validPassword(p string) error {
	if len(p) < MinPasswordLength {
		return apperr.Validation("password must be at least 6 characters")
	}
	return nil
}
