package vaccination

import (
	"context"
	"fmt"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covidtrack/covid-server/internal/platform/db"
)

type Service struct {
	repo Repository
	tx   db.TxRunner
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

// ValidationError reports a request that fails field validation.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func validateDate(d civil.Date) error {
	if d == (civil.Date{}) {
		return invalid("date is required")
	}
	if !d.IsValid() {
		return invalid("invalid date %s", d)
	}
	return nil
}

// Create records a dose after checking it against the patient's first dose.
// The patient row is locked so concurrent doses are checked one at a time.
func (s *Service) Create(ctx context.Context, v *Vaccination) error {
	if v.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if err := validateDate(v.Date); err != nil {
		return err
	}
	if !v.VaccineType.Valid() {
		return invalid("vaccine_type is required")
	}

	return s.tx.RunInTx(ctx, pgx.TxOptions{}, func(ctx context.Context) error {
		if err := s.repo.LockPatient(ctx, v.PatientID); err != nil {
			return err
		}
		existing, err := s.repo.AllByPatient(ctx, v.PatientID)
		if err != nil {
			return err
		}
		if err := ValidateNewDose(v.PatientID, v.VaccineType, existing); err != nil {
			return err
		}
		return s.repo.Create(ctx, v)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies upd to dose id. The vaccine type rule is only evaluated
// when the update changes the type.
func (s *Service) Update(ctx context.Context, id uuid.UUID, upd VaccinationUpdate) (*Vaccination, error) {
	if upd.Date != nil {
		if err := validateDate(*upd.Date); err != nil {
			return nil, err
		}
	}
	if upd.VaccineType != nil && !upd.VaccineType.Valid() {
		return nil, invalid("invalid vaccine_type %q", *upd.VaccineType)
	}

	var out *Vaccination
	err := s.tx.RunInTx(ctx, pgx.TxOptions{}, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if upd.VaccineType != nil {
			if err := s.repo.LockPatient(ctx, current.PatientID); err != nil {
				return err
			}
			others, err := s.repo.AllByPatient(ctx, current.PatientID)
			if err != nil {
				return err
			}
			if err := ValidateDoseUpdate(current.PatientID, id, *upd.VaccineType, others); err != nil {
				return err
			}
		}
		upd.Apply(current)
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Vaccination, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// History returns all doses of a patient for the reminder engine.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]Vaccination, error) {
	return s.repo.AllByPatient(ctx, patientID)
}
