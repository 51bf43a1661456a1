package caserecord

import (
	"context"
	"fmt"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// ValidationError reports a request that fails field validation.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validateDiagDate(d civil.Date) error {
	if d == (civil.Date{}) {
		return invalid("diag_date is required")
	}
	if !d.IsValid() {
		return invalid("invalid diag_date %s", d)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, r *CaseRecord) error {
	if r.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if r.LocationID == uuid.Nil {
		return invalid("location_id is required")
	}
	if err := validateDiagDate(r.DiagDate); err != nil {
		return err
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
	if !r.Status.Valid() {
		return invalid("invalid status: %s", r.Status)
	}
	return s.repo.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CaseRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, upd CaseRecordUpdate) (*CaseRecord, error) {
	if upd.DiagDate != nil {
		if err := validateDiagDate(*upd.DiagDate); err != nil {
			return nil, err
		}
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, invalid("invalid status: %s", *upd.Status)
	}
	if upd.LocationID != nil && *upd.LocationID == uuid.Nil {
		return nil, invalid("location_id must not be empty")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(current)
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*CaseRecord, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CaseRecord, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]CaseRecord, error) {
	return s.repo.AllByPatient(ctx, patientID)
}

// CurrentStatus returns the status of the patient's latest case record.
func (s *Service) CurrentStatus(ctx context.Context, patientID uuid.UUID) (Status, bool, error) {
	records, err := s.repo.AllByPatient(ctx, patientID)
	if err != nil {
		return "", false, err
	}
	latest, ok := Latest(records)
	return latest.Status, ok, nil
}
