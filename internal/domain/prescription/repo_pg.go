package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicrx/clinic/internal/domain/patient"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
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

const prescriptionColumns = `rx.id, rx.tenant_id, rx.patient_id, rx.doctor_id, rx.notes,
	rx.created_at, rx.updated_at, pt.full_name, pt.date_of_birth`

const prescriptionFrom = `prescriptions rx JOIN patients pt ON pt.id = rx.patient_id`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanPrescription(row scannable) (*Prescription, error) {
	var p Prescription
	var ps PatientSummary
	var dob *patient.Date
	err := row.Scan(
		&p.ID, &p.TenantID, &p.PatientID, &p.DoctorID, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt, &ps.FullName, &dob,
	)
	if err != nil {
		return nil, err
	}
	ps.ID = p.PatientID
	ps.DateOfBirth = dob
	p.Patient = &ps
	p.Medications = []Medication{}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, tenant_id, patient_id, doctor_id, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.PatientID, p.DoctorID, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertMedications(ctx, p.ID, p.Medications)
}

func (r *repoPG) insertMedications(ctx context.Context, prescriptionID uuid.UUID, meds []Medication) error {
	if len(meds) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := range meds {
		m := &meds[i]
		m.ID = uuid.New()
		m.PrescriptionID = prescriptionID
		b.Queue(`
			INSERT INTO prescription_medications (
				id, prescription_id, medication_name, dosage, form, frequency, duration, notes, sort_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			m.ID, m.PrescriptionID, m.MedicationName, m.Dosage, m.Form, m.Frequency, m.Duration, m.Notes, m.SortOrder)
	}
	br := r.conn(ctx).SendBatch(ctx, b)
	defer br.Close()
	for range meds {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert medication: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionColumns+` FROM `+prescriptionFrom+` WHERE rx.tenant_id = $1 AND rx.id = $2`,
		tenantID, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadMedications(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET patient_id = $3, notes = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		p.TenantID, p.ID, p.PatientID, p.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) ReplaceMedications(ctx context.Context, prescriptionID uuid.UUID, meds []Medication) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM prescription_medications WHERE prescription_id = $1`, prescriptionID); err != nil {
		return err
	}
	return r.insertMedications(ctx, prescriptionID, meds)
}

func (r *repoPG) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescriptions WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, tenantID uuid.UUID, f Filter, limit, offset int) ([]*Prescription, int, error) {
	where := `rx.tenant_id = $1`
	args := []interface{}{tenantID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += fmt.Sprintf(` AND rx.patient_id = $%d`, len(args))
	}
	if f.Q != "" {
		args = append(args, "%"+f.Q+"%")
		where += fmt.Sprintf(` AND pt.full_name ILIKE $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+prescriptionFrom+` WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY rx.created_at DESC LIMIT $%d OFFSET $%d`,
		prescriptionColumns, prescriptionFrom, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadMedications(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// loadMedications fills the line items of ps in sort order with one query.
func (r *repoPG) loadMedications(ctx context.Context, ps []*Prescription) error {
	if len(ps) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Prescription, len(ps))
	ids := make([]uuid.UUID, 0, len(ps))
	for _, p := range ps {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, medication_name, dosage, form, frequency, duration, notes, sort_order
		FROM prescription_medications
		WHERE prescription_id = ANY($1)
		ORDER BY prescription_id, sort_order, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.PrescriptionID, &m.MedicationName, &m.Dosage, &m.Form,
			&m.Frequency, &m.Duration, &m.Notes, &m.SortOrder); err != nil {
			return err
		}
		if p, ok := byID[m.PrescriptionID]; ok {
			p.Medications = append(p.Medications, m)
		}
	}
	return rows.Err()
}
