package vaccination

import (
	"errors"
	"fmt"
	"sort"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

var ErrInvalidVaccineType = errors.New("vaccine_type must be covaxin, covishield or sputnik")

// VaccineTypeMismatchError reports a dose whose vaccine type differs from the
// patient's first dose.
type VaccineTypeMismatchError struct {
	RequiredType VaccineType
}

func (e *VaccineTypeMismatchError) Error() string {
	return fmt.Sprintf("vaccine type must match first dose (%s)", e.RequiredType)
}

// MalformedInputError reports a dose history the rules cannot reason about.
type MalformedInputError struct {
	DoseID uuid.UUID
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed dose %s: %s", e.DoseID, e.Reason)
}

// FirstDose returns the chronologically first dose. Doses on the same date
// are ordered by creation time, then by id. ok is false for an empty history.
func FirstDose(doses []Vaccination) (first Vaccination, ok bool) {
	if len(doses) == 0 {
		return Vaccination{}, false
	}
	sorted := make([]Vaccination, len(doses))
	copy(sorted, doses)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return sorted[0], true
}

func checkHistory(patientID uuid.UUID, doses []Vaccination) error {
	for _, d := range doses {
		if d.PatientID != patientID {
			return &MalformedInputError{DoseID: d.ID, Reason: fmt.Sprintf("belongs to patient %s, not %s", d.PatientID, patientID)}
		}
		if d.Date == (civil.Date{}) || !d.Date.IsValid() {
			return &MalformedInputError{DoseID: d.ID, Reason: "missing or invalid date"}
		}
		if !d.VaccineType.Valid() {
			return &MalformedInputError{DoseID: d.ID, Reason: fmt.Sprintf("unknown vaccine_type %q", d.VaccineType)}
		}
	}
	return nil
}

// ValidateNewDose checks that a dose of type proposed may be added to the
// patient's existing doses. Any type is accepted for a first dose.
func ValidateNewDose(patientID uuid.UUID, proposed VaccineType, existing []Vaccination) error {
	if !proposed.Valid() {
		return ErrInvalidVaccineType
	}
	if err := checkHistory(patientID, existing); err != nil {
		return err
	}
	first, ok := FirstDose(existing)
	if !ok || first.VaccineType == proposed {
		return nil
	}
	return &VaccineTypeMismatchError{RequiredType: first.VaccineType}
}

// ValidateDoseUpdate checks that dose doseID may take type proposed. The dose
// itself is ignored when present in others, so the comparison is against
// the earliest remaining dose.
func ValidateDoseUpdate(patientID, doseID uuid.UUID, proposed VaccineType, others []Vaccination) error {
	remaining := make([]Vaccination, 0, len(others))
	for _, d := range others {
		if d.ID != doseID {
			remaining = append(remaining, d)
		}
	}
	return ValidateNewDose(patientID, proposed, remaining)
}
