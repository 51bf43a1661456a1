package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidtrack/covid-server/internal/domain/caserecord"
	"github.com/covidtrack/covid-server/internal/domain/vaccination"
	"github.com/covidtrack/covid-server/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) HistoryRepository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const (
	vaxQuery  = `SELECT id, patient_id, date, vaccine_type, created_at FROM vaccinations`
	caseQuery = `SELECT id, patient_id, location_id, diag_date, status, created_at FROM case_records`
)

func (r *repoPG) PatientHistory(ctx context.Context, patientID uuid.UUID) (PatientHistory, error) {
	h := PatientHistory{PatientID: patientID}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, patientID).Scan(&exists); err != nil {
		return h, fmt.Errorf("check patient: %w", err)
	}
	if !exists {
		return h, ErrPatientNotFound
	}

	vax, err := r.vaccinations(ctx, vaxQuery+` WHERE patient_id = $1`, patientID)
	if err != nil {
		return h, err
	}
	cases, err := r.caseRecords(ctx, caseQuery+` WHERE patient_id = $1`, patientID)
	if err != nil {
		return h, err
	}
	h.Vaccinations = vax[patientID]
	h.CaseRecords = cases[patientID]
	return h, nil
}

func (r *repoPG) AllHistories(ctx context.Context) ([]PatientHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM patients ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan patients: %w", err)
	}

	vax, err := r.vaccinations(ctx, vaxQuery)
	if err != nil {
		return nil, err
	}
	cases, err := r.caseRecords(ctx, caseQuery)
	if err != nil {
		return nil, err
	}

	out := make([]PatientHistory, 0, len(ids))
	for _, id := range ids {
		out = append(out, PatientHistory{PatientID: id, Vaccinations: vax[id], CaseRecords: cases[id]})
	}
	return out, nil
}

func (r *repoPG) vaccinations(ctx context.Context, sql string, args ...any) (map[uuid.UUID][]vaccination.Vaccination, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query vaccinations: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]vaccination.Vaccination)
	for rows.Next() {
		var (
			v    vaccination.Vaccination
			date *time.Time
		)
		if err := rows.Scan(&v.ID, &v.PatientID, &date, &v.VaccineType, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vaccination: %w", err)
		}
		if date != nil {
			v.Date = civil.DateOf(*date)
		}
		out[v.PatientID] = append(out[v.PatientID], v)
	}
	return out, rows.Err()
}

func (r *repoPG) caseRecords(ctx context.Context, sql string, args ...any) (map[uuid.UUID][]caserecord.CaseRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query case records: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]caserecord.CaseRecord)
	for rows.Next() {
		var (
			c    caserecord.CaseRecord
			diag *time.Time
		)
		if err := rows.Scan(&c.ID, &c.PatientID, &c.LocationID, &diag, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan case record: %w", err)
		}
		if diag != nil {
			c.DiagDate = civil.DateOf(*diag)
		}
		out[c.PatientID] = append(out[c.PatientID], c)
	}
	return out, rows.Err()
}

