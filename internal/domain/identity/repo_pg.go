package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicrx/clinic/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const profileColumns = `id, tenant_id, full_name, specialty, license_number, phone,
	signature_path, avatar_path, created_at, updated_at`

func (r *repoPG) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id).Scan(
		&p.ID, &p.TenantID, &p.FullName, &p.Specialty, &p.LicenseNumber, &p.Phone,
		&p.SignaturePath, &p.AvatarPath, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) CreateProfile(ctx context.Context, p *Profile) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO profiles (id, tenant_id, full_name, specialty, license_number, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.FullName, p.Specialty, p.LicenseNumber, p.Phone,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) UpdateProfile(ctx context.Context, p *Profile) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE profiles SET
			full_name = $2, specialty = $3, license_number = $4, phone = $5,
			signature_path = $6, avatar_path = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FullName, p.Specialty, p.LicenseNumber, p.Phone,
		p.SignaturePath, p.AvatarPath,
	).Scan(&p.UpdatedAt)
}

func (r *repoPG) GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return SortRoles(roles), rows.Err()
}

func (r *repoPG) AddRole(ctx context.Context, userID uuid.UUID, role string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT (user_id, role) DO NOTHING`,
		userID, role)
	return err
}

const tenantColumns = `id, name, address, phone, logo_path, footer_note,
	subscription_status, trial_ends_at, created_at, updated_at`

func (r *repoPG) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id).Scan(
		&t.ID, &t.Name, &t.Address, &t.Phone, &t.LogoPath, &t.FooterNote,
		&t.SubscriptionStatus, &t.TrialEndsAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) CreateTenant(ctx context.Context, t *Tenant) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tenants (id, name, address, phone, footer_note, subscription_status, trial_ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Address, t.Phone, t.FooterNote, t.SubscriptionStatus, t.TrialEndsAt,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *repoPG) UpdateTenant(ctx context.Context, t *Tenant) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE tenants SET
			name = $2, address = $3, phone = $4, logo_path = $5, footer_note = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Name, t.Address, t.Phone, t.LogoPath, t.FooterNote,
	).Scan(&t.UpdatedAt)
}
