package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists accounts and password resets. Email lookups are
// case-insensitive.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateReset(ctx context.Context, r *PasswordReset) error
	GetReset(ctx context.Context, id uuid.UUID) (*PasswordReset, error)
	MarkResetUsed(ctx context.Context, id uuid.UUID) error
}
