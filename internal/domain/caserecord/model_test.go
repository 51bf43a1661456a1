package caserecord

import (
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLatest_MostRecentDiagnosis(t *testing.T) {
	records := []CaseRecord{
		{ID: uuid.New(), DiagDate: day("2024-01-01"), Status: StatusActive},
		{ID: uuid.New(), DiagDate: day("2024-03-01"), Status: StatusRecovered},
		{ID: uuid.New(), DiagDate: day("2024-02-01"), Status: StatusActive},
	}
	got, ok := Latest(records)
	if !ok || got.Status != StatusRecovered {
		t.Errorf("expected recovered record from 2024-03-01, got %+v", got)
	}
}

func TestLatest_TieBreaks(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	older := CaseRecord{ID: uuid.New(), DiagDate: day("2024-01-01"), Status: StatusActive, CreatedAt: now}
	newer := CaseRecord{ID: uuid.New(), DiagDate: day("2024-01-01"), Status: StatusRecovered, CreatedAt: now.Add(time.Minute)}

	got, _ := Latest([]CaseRecord{newer, older})
	if got.ID != newer.ID {
		t.Error("expected later-created record to win a diag_date tie")
	}

	a := CaseRecord{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), DiagDate: day("2024-01-01")}
	b := CaseRecord{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), DiagDate: day("2024-01-01")}
	for _, order := range [][]CaseRecord{{a, b}, {b, a}} {
		if got, _ := Latest(order); got.ID != b.ID {
			t.Errorf("expected deterministic id tie-break, got %s", got.ID)
		}
	}
}

func TestLatest_Empty(t *testing.T) {
	if _, ok := Latest(nil); ok {
		t.Error("expected ok=false for no records")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"active", "Recovered", " death "} {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q): %v", s, err)
		}
	}
	if _, err := ParseStatus("dead"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestCaseRecordUpdate_Apply(t *testing.T) {
	r := CaseRecord{Status: StatusActive, DiagDate: day("2024-01-01")}
	st := StatusRecovered
	CaseRecordUpdate{Status: &st}.Apply(&r)
	if r.Status != StatusRecovered || r.DiagDate != day("2024-01-01") {
		t.Errorf("unexpected record after update: %+v", r)
	}
}
