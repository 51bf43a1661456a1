package vaccination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidtrack/covid-server/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const vaxCols = `id, patient_id, date, vaccine_type, created_at`

func scanVaccination(row pgx.Row) (*Vaccination, error) {
	var (
		v    Vaccination
		date time.Time
	)
	if err := row.Scan(&v.ID, &v.PatientID, &date, &v.VaccineType, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v.Date = civil.DateOf(date)
	return &v, nil
}

func (r *repoPG) Create(ctx context.Context, v *Vaccination) error {
	v.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vaccinations (id, patient_id, date, vaccine_type)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		v.ID, v.PatientID, v.Date.In(time.UTC), v.VaccineType).Scan(&v.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrPatientNotFound
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return scanVaccination(r.conn(ctx).QueryRow(ctx, `SELECT `+vaxCols+` FROM vaccinations WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, v *Vaccination) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE vaccinations SET date = $2, vaccine_type = $3
		WHERE id = $1`,
		v.ID, v.Date.In(time.UTC), v.VaccineType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM vaccinations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Vaccination, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccinations`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vaxCols+` FROM vaccinations ORDER BY date DESC, created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccinations WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vaxCols+` FROM vaccinations WHERE patient_id = $1 ORDER BY date, created_at LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) AllByPatient(ctx context.Context, patientID uuid.UUID) ([]Vaccination, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vaxCols+` FROM vaccinations WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query doses: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	out := make([]Vaccination, len(items))
	for i, v := range items {
		out[i] = *v
	}
	return out, nil
}

func (r *repoPG) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM patients WHERE id = $1 FOR UPDATE`, patientID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPatientNotFound
	}
	return err
}

func collect(rows pgx.Rows) ([]*Vaccination, error) {
	defer rows.Close()
	var items []*Vaccination
	for rows.Next() {
		v, err := scanVaccination(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
