package vaccination

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

type VaccineType string

const (
	Covaxin    VaccineType = "covaxin"
	Covishield VaccineType = "covishield"
	Sputnik    VaccineType = "sputnik"
)

// ParseVaccineType accepts the canonical lowercase names, ignoring case and
// surrounding whitespace.
func ParseVaccineType(s string) (VaccineType, error) {
	switch v := VaccineType(strings.ToLower(strings.TrimSpace(s))); v {
	case Covaxin, Covishield, Sputnik:
		return v, nil
	default:
		return "", fmt.Errorf("invalid vaccine_type %q: must be covaxin, covishield or sputnik", s)
	}
}

func (v VaccineType) Valid() bool {
	switch v {
	case Covaxin, Covishield, Sputnik:
		return true
	}
	return false
}

// UnmarshalText normalises case so JSON bodies may send "Covaxin".
func (v *VaccineType) UnmarshalText(b []byte) error {
	parsed, err := ParseVaccineType(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Vaccination maps to the vaccinations table.
type Vaccination struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	PatientID   uuid.UUID   `db:"patient_id" json:"patient_id"`
	Date        civil.Date  `db:"date" json:"date"`
	VaccineType VaccineType `db:"vaccine_type" json:"vaccine_type"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// VaccinationUpdate lists the fields an update may change. Nil fields are
// left untouched.
type VaccinationUpdate struct {
	Date        *civil.Date  `json:"date"`
	VaccineType *VaccineType `json:"vaccine_type"`
}

func (u VaccinationUpdate) Empty() bool {
	return u.Date == nil && u.VaccineType == nil
}

// Apply copies the set fields onto v.
func (u VaccinationUpdate) Apply(v *Vaccination) {
	if u.Date != nil {
		v.Date = *u.Date
	}
	if u.VaccineType != nil {
		v.VaccineType = *u.VaccineType
	}
}
