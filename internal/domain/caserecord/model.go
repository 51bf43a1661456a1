package caserecord

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusRecovered Status = "recovered"
	StatusDeath     Status = "death"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusRecovered, StatusDeath:
		return st, nil
	default:
		return "", fmt.Errorf("invalid status %q: must be active, recovered or death", s)
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRecovered, StatusDeath:
		return true
	}
	return false
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CaseRecord maps to the case_records table.
type CaseRecord struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	LocationID uuid.UUID  `db:"location_id" json:"location_id"`
	DiagDate   civil.Date `db:"diag_date" json:"diag_date"`
	Status     Status     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// CaseRecordUpdate lists the fields an update may change.
type CaseRecordUpdate struct {
	LocationID *uuid.UUID  `json:"location_id"`
	DiagDate   *civil.Date `json:"diag_date"`
	Status     *Status     `json:"status"`
}

func (u CaseRecordUpdate) Empty() bool {
	return u.LocationID == nil && u.DiagDate == nil && u.Status == nil
}

func (u CaseRecordUpdate) Apply(r *CaseRecord) {
	if u.LocationID != nil {
		r.LocationID = *u.LocationID
	}
	if u.DiagDate != nil {
		r.DiagDate = *u.DiagDate
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
}

// Latest returns the record with the most recent diagnosis date, which
// carries the patient's current status. Ties go to the most recently
// created record, then to the greater id.
func Latest(records []CaseRecord) (CaseRecord, bool) {
	if len(records) == 0 {
		return CaseRecord{}, false
	}
	sorted := make([]CaseRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DiagDate != b.DiagDate {
			return a.DiagDate.After(b.DiagDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
	return sorted[0], true
}
