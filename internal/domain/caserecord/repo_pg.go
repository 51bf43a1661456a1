package caserecord

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

const caseCols = `id, patient_id, location_id, diag_date, status, created_at`

func scanCase(row pgx.Row) (*CaseRecord, error) {
	var (
		c    CaseRecord
		diag time.Time
	)
	if err := row.Scan(&c.ID, &c.PatientID, &c.LocationID, &diag, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.DiagDate = civil.DateOf(diag)
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *CaseRecord) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO case_records (id, patient_id, location_id, diag_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		c.ID, c.PatientID, c.LocationID, c.DiagDate.In(time.UTC), c.Status).Scan(&c.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrReferenceNotFound
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CaseRecord, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM case_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *CaseRecord) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE case_records SET location_id = $2, diag_date = $3, status = $4
		WHERE id = $1`,
		c.ID, c.LocationID, c.DiagDate.In(time.UTC), c.Status)
	if db.IsForeignKeyViolation(err) {
		return ErrReferenceNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM case_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*CaseRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM case_records`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+caseCols+` FROM case_records ORDER BY diag_date DESC, created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CaseRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM case_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+caseCols+` FROM case_records WHERE patient_id = $1 ORDER BY diag_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) AllByPatient(ctx context.Context, patientID uuid.UUID) ([]CaseRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+caseCols+` FROM case_records WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query case records: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	out := make([]CaseRecord, len(items))
	for i, c := range items {
		out[i] = *c
	}
	return out, nil
}

func collect(rows pgx.Rows) ([]*CaseRecord, error) {
	defer rows.Close()
	var items []*CaseRecord
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
