package vaccination

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dose(patient uuid.UUID, day string, vt VaccineType) Vaccination {
	return Vaccination{ID: uuid.New(), PatientID: patient, Date: date(day), VaccineType: vt}
}

func TestValidateNewDose_EmptyHistoryAcceptsAnyType(t *testing.T) {
	p := uuid.New()
	for _, vt := range []VaccineType{Covaxin, Covishield, Sputnik} {
		if err := ValidateNewDose(p, vt, nil); err != nil {
			t.Errorf("%s: unexpected error %v", vt, err)
		}
	}
}

func TestValidateNewDose_MatchesFirstDose(t *testing.T) {
	p := uuid.New()
	existing := []Vaccination{dose(p, "2024-01-01", Covaxin)}

	if err := ValidateNewDose(p, Covaxin, existing); err != nil {
		t.Errorf("expected same type to be accepted, got %v", err)
	}

	err := ValidateNewDose(p, Covishield, existing)
	var mismatch *VaccineTypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected VaccineTypeMismatchError, got %v", err)
	}
	if mismatch.RequiredType != Covaxin {
		t.Errorf("expected required type covaxin, got %s", mismatch.RequiredType)
	}
	if mismatch.Error() != "vaccine type must match first dose (covaxin)" {
		t.Errorf("unexpected message: %s", mismatch.Error())
	}
}

func TestValidateNewDose_UsesChronologicallyFirstDose(t *testing.T) {
	p := uuid.New()
	// supplied out of order: the later-added record carries the earlier date
	existing := []Vaccination{
		dose(p, "2024-03-01", Covishield),
		dose(p, "2024-01-01", Covaxin),
	}

	err := ValidateNewDose(p, Covishield, existing)
	var mismatch *VaccineTypeMismatchError
	if !errors.As(err, &mismatch) || mismatch.RequiredType != Covaxin {
		t.Fatalf("expected mismatch against covaxin, got %v", err)
	}
}

func TestValidateNewDose_RejectsInvalidProposedType(t *testing.T) {
	if err := ValidateNewDose(uuid.New(), "pfizer", nil); !errors.Is(err, ErrInvalidVaccineType) {
		t.Errorf("expected ErrInvalidVaccineType, got %v", err)
	}
}

func TestValidateNewDose_MalformedHistory(t *testing.T) {
	p := uuid.New()
	tests := []struct {
		name string
		dose Vaccination
	}{
		{"missing date", Vaccination{ID: uuid.New(), PatientID: p, VaccineType: Covaxin}},
		{"foreign patient", dose(uuid.New(), "2024-01-01", Covaxin)},
		{"unknown type", Vaccination{ID: uuid.New(), PatientID: p, Date: date("2024-01-01"), VaccineType: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewDose(p, Covaxin, []Vaccination{tt.dose})
			var malformed *MalformedInputError
			if !errors.As(err, &malformed) {
				t.Errorf("expected MalformedInputError, got %v", err)
			}
		})
	}
}

func TestValidateDoseUpdate_ExcludesEditedDose(t *testing.T) {
	p := uuid.New()
	only := dose(p, "2024-01-01", Covaxin)

	// the only dose may change type freely
	if err := ValidateDoseUpdate(p, only.ID, Sputnik, []Vaccination{only}); err != nil {
		t.Errorf("expected update of sole dose to be accepted, got %v", err)
	}
}

func TestValidateDoseUpdate_ComparesAgainstRemainingFirst(t *testing.T) {
	p := uuid.New()
	first := dose(p, "2024-01-01", Covaxin)
	second := dose(p, "2024-07-01", Covaxin)
	all := []Vaccination{first, second}

	err := ValidateDoseUpdate(p, second.ID, Covishield, all)
	var mismatch *VaccineTypeMismatchError
	if !errors.As(err, &mismatch) || mismatch.RequiredType != Covaxin {
		t.Fatalf("expected mismatch against covaxin, got %v", err)
	}

	// editing the first dose compares against the second, now earliest
	err = ValidateDoseUpdate(p, first.ID, Covishield, all)
	if !errors.As(err, &mismatch) || mismatch.RequiredType != Covaxin {
		t.Fatalf("expected mismatch against remaining covaxin dose, got %v", err)
	}

	if err := ValidateDoseUpdate(p, first.ID, Covaxin, all); err != nil {
		t.Errorf("unchanged type must be accepted, got %v", err)
	}
}

func TestFirstDose_TieBreak(t *testing.T) {
	p := uuid.New()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	a := Vaccination{ID: uuid.New(), PatientID: p, Date: date("2024-01-01"), VaccineType: Covaxin, CreatedAt: base.Add(time.Hour)}
	b := Vaccination{ID: uuid.New(), PatientID: p, Date: date("2024-01-01"), VaccineType: Covaxin, CreatedAt: base}

	first, ok := FirstDose([]Vaccination{a, b})
	if !ok || first.ID != b.ID {
		t.Errorf("expected earlier-created dose to win the tie")
	}

	if _, ok := FirstDose(nil); ok {
		t.Error("expected ok=false for empty history")
	}
}

func TestFirstDose_DoesNotReorderInput(t *testing.T) {
	p := uuid.New()
	doses := []Vaccination{dose(p, "2024-05-01", Covaxin), dose(p, "2024-01-01", Covaxin)}
	firstID := doses[0].ID
	FirstDose(doses)
	if doses[0].ID != firstID {
		t.Error("FirstDose must not mutate its input")
	}
}

// The invariant holds for any sequence of accepted creations.
func TestSingleTypeInvariant_AcceptedSequence(t *testing.T) {
	p := uuid.New()
	var history []Vaccination
	attempts := []struct {
		day string
		vt  VaccineType
	}{
		{"2024-02-01", Covishield},
		{"2024-01-01", Covaxin},
		{"2024-08-01", Covishield},
		{"2024-09-01", Sputnik},
		{"2025-01-01", Covishield},
	}
	for _, a := range attempts {
		if err := ValidateNewDose(p, a.vt, history); err == nil {
			history = append(history, dose(p, a.day, a.vt))
		}
	}
	for _, d := range history {
		if d.VaccineType != history[0].VaccineType {
			t.Fatalf("history mixes vaccine types: %+v", history)
		}
	}
	if len(history) != 3 {
		t.Errorf("expected 3 accepted covishield doses, got %d", len(history))
	}
}

func TestParseVaccineType(t *testing.T) {
	if vt, err := ParseVaccineType(" Covaxin "); err != nil || vt != Covaxin {
		t.Errorf("expected covaxin, got %q (%v)", vt, err)
	}
	if _, err := ParseVaccineType("moderna"); err == nil {
		t.Error("expected error for unknown vaccine")
	}
}
