package vaccination

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("vaccination not found")
	ErrPatientNotFound = errors.New("patient not found")
)

type Repository interface {
	Create(ctx context.Context, v *Vaccination) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error)
	Update(ctx context.Context, v *Vaccination) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Vaccination, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error)
	// AllByPatient returns every dose of the patient, unordered.
	AllByPatient(ctx context.Context, patientID uuid.UUID) ([]Vaccination, error)
	// LockPatient serialises dose writes for one patient for the rest of the
	// current transaction. It returns ErrPatientNotFound for unknown patients.
	LockPatient(ctx context.Context, patientID uuid.UUID) error
}
