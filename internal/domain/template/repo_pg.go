package template

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const templateColumns = `id, tenant_id, created_by, name, description, created_at, updated_at`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row scannable) (*Template, error) {
	var t Template
	if err := row.Scan(&t.ID, &t.TenantID, &t.CreatedBy, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Medications = []Medication{}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription_templates (id, tenant_id, created_by, name, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.TenantID, t.CreatedBy, t.Name, t.Description,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertMedications(ctx, t.ID, t.Medications)
}

func (r *repoPG) insertMedications(ctx context.Context, templateID uuid.UUID, meds []Medication) error {
	if len(meds) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := range meds {
		m := &meds[i]
		m.ID = uuid.New()
		m.TemplateID = templateID
		b.Queue(`
			INSERT INTO template_medications (
				id, template_id, medication_name, dosage, form, frequency, duration, notes, sort_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			m.ID, m.TemplateID, m.MedicationName, m.Dosage, m.Form, m.Frequency, m.Duration, m.Notes, m.SortOrder)
	}
	br := r.conn(ctx).SendBatch(ctx, b)
	defer br.Close()
	for range meds {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert template medication: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Template, error) {
	t, err := scanTemplate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+templateColumns+` FROM prescription_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadMedications(ctx, []*Template{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repoPG) Update(ctx context.Context, t *Template) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE prescription_templates SET name = $3, description = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`,
		t.TenantID, t.ID, t.Name, t.Description,
	).Scan(&t.UpdatedAt)
	return err
}

func (r *repoPG) ReplaceMedications(ctx context.Context, templateID uuid.UUID, meds []Medication) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM template_medications WHERE template_id = $1`, templateID); err != nil {
		return err
	}
	return r.insertMedications(ctx, templateID, meds)
}

func (r *repoPG) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, tenantID uuid.UUID, q string, limit, offset int) ([]*Template, int, error) {
	where := `tenant_id = $1`
	args := []interface{}{tenantID}
	if q != "" {
		where += ` AND (name ILIKE $2 OR description ILIKE $2)`
		args = append(args, "%"+q+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription_templates WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM prescription_templates WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		templateColumns, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadMedications(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) loadMedications(ctx context.Context, ts []*Template) error {
	if len(ts) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Template, len(ts))
	ids := make([]uuid.UUID, 0, len(ts))
	for _, t := range ts {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, template_id, medication_name, dosage, form, frequency, duration, notes, sort_order
		FROM template_medications
		WHERE template_id = ANY($1)
		ORDER BY template_id, sort_order, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.TemplateID, &m.MedicationName, &m.Dosage, &m.Form,
			&m.Frequency, &m.Duration, &m.Notes, &m.SortOrder); err != nil {
			return err
		}
		if t, ok := byID[m.TemplateID]; ok {
			t.Medications = append(t.Medications, m)
		}
	}
	return rows.Err()
}
