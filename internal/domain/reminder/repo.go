package reminder

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrPatientNotFound = errors.New("patient not found")

// HistoryRepository reads the records the reminder rules need.
type HistoryRepository interface {
	// PatientHistory returns one patient's doses and case records.
	PatientHistory(ctx context.Context, patientID uuid.UUID) (PatientHistory, error)
	// AllHistories returns every patient in creation order.
	AllHistories(ctx context.Context) ([]PatientHistory, error)
}
