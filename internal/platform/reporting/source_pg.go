package reporting

import (
	"context"
	"time"

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

type pgSource struct {
	pool *pgxpool.Pool
}

// NewPGSource returns a Source reading the clinic tables.
func NewPGSource(pool *pgxpool.Pool) Source {
	return &pgSource{pool: pool}
}

func (s *pgSource) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

func (s *pgSource) Prescriptions(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]PrescriptionRecord, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT p.id, pa.full_name, COALESCE(p.notes, ''), p.created_at,
			COALESCE(array_agg(m.medication_name ORDER BY m.sort_order) FILTER (WHERE m.id IS NOT NULL), '{}')
		FROM prescriptions p
		JOIN patients pa ON pa.id = p.patient_id
		LEFT JOIN prescription_medications m ON m.prescription_id = p.id
		WHERE p.tenant_id = $1 AND ($2::timestamptz IS NULL OR p.created_at >= $2)
		GROUP BY p.id, pa.full_name
		ORDER BY p.created_at DESC`, tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PrescriptionRecord
	for rows.Next() {
		var r PrescriptionRecord
		if err := rows.Scan(&r.ID, &r.PatientName, &r.Notes, &r.CreatedAt, &r.Medications); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *pgSource) Patients(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]PatientRecord, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT id, full_name, date_of_birth, COALESCE(gender, ''), COALESCE(phone, ''),
			COALESCE(allergies, ''), COALESCE(chronic_diseases, ''), COALESCE(notes, ''), created_at
		FROM patients
		WHERE tenant_id = $1 AND NOT is_archived AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC`, tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PatientRecord
	for rows.Next() {
		var r PatientRecord
		if err := rows.Scan(&r.ID, &r.FullName, &r.DateOfBirth, &r.Gender, &r.Phone,
			&r.Allergies, &r.ChronicDiseases, &r.Notes, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
