package team

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
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

const memberQuery = `
	SELECT p.id, p.full_name, a.email, p.specialty, p.license_number, p.phone, p.created_at,
		COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}')
	FROM profiles p
	LEFT JOIN accounts a ON a.id = p.id
	LEFT JOIN user_roles ur ON ur.user_id = p.id
	WHERE p.tenant_id = $1`

const memberGroup = `
	GROUP BY p.id, a.email`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanMember(row scannable) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.FullName, &m.Email, &m.Specialty, &m.LicenseNumber, &m.Phone,
		&m.CreatedAt, &m.Roles); err != nil {
		return nil, err
	}
	m.Roles = identity.SortRoles(m.Roles)
	m.Role = identity.PrimaryRole(m.Roles)
	return &m, nil
}

func (r *repoPG) List(ctx context.Context, tenantID uuid.UUID) ([]*Member, error) {
	rows, err := r.conn(ctx).Query(ctx, memberQuery+memberGroup+` ORDER BY p.created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, tenantID, userID uuid.UUID) (*Member, error) {
	return scanMember(r.conn(ctx).QueryRow(ctx, memberQuery+` AND p.id = $2`+memberGroup, tenantID, userID))
}

func (r *repoPG) Link(ctx context.Context, p *identity.Profile) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO profiles (id, tenant_id, full_name, specialty, license_number, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id, full_name = EXCLUDED.full_name,
			specialty = EXCLUDED.specialty, license_number = EXCLUDED.license_number,
			phone = EXCLUDED.phone, updated_at = NOW()
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.FullName, p.Specialty, p.LicenseNumber, p.Phone,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) SetRole(ctx context.Context, userID uuid.UUID, role string) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, userID, role)
	return err
}

func (r *repoPG) Remove(ctx context.Context, tenantID, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE profiles SET tenant_id = NULL, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`, tenantID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	_, err = r.conn(ctx).Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	return err
}
