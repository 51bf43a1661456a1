// Package reminder derives second-dose and retest reminders from a
// patient's vaccination and case history. Reminders are computed on demand
// and never stored.
package reminder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/covidtrack/covid-server/internal/domain/caserecord"
	"github.com/covidtrack/covid-server/internal/domain/vaccination"
)

type Kind string

const (
	KindVaccinationDue Kind = "vaccination_due"
	KindRetestReminder Kind = "retest_reminder"
)

const (
	SecondDoseAfterDays = 180
	RetestAfterDays     = 15
	NoticeWindowDays    = 7
)

const (
	StatusDueSoon = "due_soon"
	StatusOverdue = "overdue"
)

// Notification is one reminder for one patient. Exactly one of DueDate and
// RetestDate is set, matching Type.
type Notification struct {
	Type       Kind        `json:"type"`
	PatientID  uuid.UUID   `json:"patient_id"`
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	Status     string      `json:"status,omitempty"`
	DueDate    *civil.Date `json:"due_date,omitempty"`
	RetestDate *civil.Date `json:"retest_date,omitempty"`
}

// Date returns whichever reference date the notification carries.
func (n Notification) Date() civil.Date {
	if n.DueDate != nil {
		return *n.DueDate
	}
	if n.RetestDate != nil {
		return *n.RetestDate
	}
	return civil.Date{}
}

// PatientHistory is everything the rules look at for one patient. Records
// may arrive in any order.
type PatientHistory struct {
	PatientID    uuid.UUID
	Vaccinations []vaccination.Vaccination
	CaseRecords  []caserecord.CaseRecord
}

// MalformedInputError reports history the rules cannot evaluate, such as a
// record without a date.
type MalformedInputError struct {
	PatientID uuid.UUID
	Reason    string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed history for patient %s: %s", e.PatientID, e.Reason)
}

// IsMalformed reports whether err came from history the rules rejected.
func IsMalformed(err error) bool {
	var m *MalformedInputError
	return errors.As(err, &m)
}

func validDate(d civil.Date) bool {
	return d != (civil.Date{}) && d.IsValid()
}

func checkHistory(h PatientHistory) error {
	if h.PatientID == uuid.Nil {
		return &MalformedInputError{Reason: "missing patient id"}
	}
	for _, v := range h.Vaccinations {
		if v.PatientID != h.PatientID {
			return &MalformedInputError{PatientID: h.PatientID, Reason: fmt.Sprintf("vaccination %s belongs to patient %s", v.ID, v.PatientID)}
		}
		if !validDate(v.Date) {
			return &MalformedInputError{PatientID: h.PatientID, Reason: fmt.Sprintf("vaccination %s has no valid date", v.ID)}
		}
	}
	for _, r := range h.CaseRecords {
		if r.PatientID != h.PatientID {
			return &MalformedInputError{PatientID: h.PatientID, Reason: fmt.Sprintf("case record %s belongs to patient %s", r.ID, r.PatientID)}
		}
		if !validDate(r.DiagDate) {
			return &MalformedInputError{PatientID: h.PatientID, Reason: fmt.Sprintf("case record %s has no valid diag_date", r.ID)}
		}
	}
	return nil
}

// secondDoseDue applies the second-dose rule: a patient with exactly one
// dose is reminded from a week before the due date onwards.
func secondDoseDue(today civil.Date, h PatientHistory) (Notification, bool) {
	if len(h.Vaccinations) != 1 {
		return Notification{}, false
	}
	due := h.Vaccinations[0].Date.AddDays(SecondDoseAfterDays)
	if today.Before(due.AddDays(-NoticeWindowDays)) {
		return Notification{}, false
	}
	status := StatusDueSoon
	if today.After(due) {
		status = StatusOverdue
	}
	return Notification{
		Type:      KindVaccinationDue,
		PatientID: h.PatientID,
		Title:     "Second dose due",
		Message:   fmt.Sprintf("Your second COVID-19 dose is %s on %s.", strings.ReplaceAll(status, "_", " "), due),
		Status:    status,
		DueDate:   &due,
	}, true
}

// retestDue applies the retest rule to the patient's current case.
func retestDue(today civil.Date, h PatientHistory) (Notification, bool) {
	latest, ok := caserecord.Latest(h.CaseRecords)
	if !ok || latest.Status != caserecord.StatusActive {
		return Notification{}, false
	}
	retest := latest.DiagDate.AddDays(RetestAfterDays)
	if today.Before(retest.AddDays(-NoticeWindowDays)) {
		return Notification{}, false
	}
	return Notification{
		Type:       KindRetestReminder,
		PatientID:  h.PatientID,
		Title:      "Retest recommended",
		Message:    fmt.Sprintf("Please get tested again on %s (%d days from diagnosis).", retest, RetestAfterDays),
		RetestDate: &retest,
	}, true
}

// ForPatient returns the reminders due for one patient as of today: the
// second-dose reminder first, then the retest reminder.
func ForPatient(today civil.Date, h PatientHistory) ([]Notification, error) {
	if !validDate(today) {
		return nil, &MalformedInputError{PatientID: h.PatientID, Reason: "invalid reference date"}
	}
	if err := checkHistory(h); err != nil {
		return nil, err
	}
	var out []Notification
	if n, ok := secondDoseDue(today, h); ok {
		out = append(out, n)
	}
	if n, ok := retestDue(today, h); ok {
		out = append(out, n)
	}
	return out, nil
}

// DueForAll evaluates every patient in input order and flattens the result.
// The first malformed history aborts the whole evaluation.
func DueForAll(today civil.Date, histories []PatientHistory) ([]Notification, error) {
	var out []Notification
	for _, h := range histories {
		ns, err := ForPatient(today, h)
		if err != nil {
			return nil, err
		}
		out = append(out, ns...)
	}
	return out, nil
}
