package reminder

import (
	"context"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/covidtrack/covid-server/internal/platform/db"
)

type Service struct {
	repo HistoryRepository
	tx   db.TxRunner
	now  func() time.Time
}

func NewService(repo HistoryRepository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx, now: time.Now}
}

// Today is the reference date for the rules: the server's local date.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now())
}

// ForPatient evaluates the rules over one patient's history.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID) ([]Notification, error) {
	var h PatientHistory
	err := s.tx.RunInTx(ctx, db.ReadSnapshot, func(ctx context.Context) error {
		var err error
		h, err = s.repo.PatientHistory(ctx, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ForPatient(s.Today(), h)
}

// DueForAll evaluates every patient against one consistent snapshot.
func (s *Service) DueForAll(ctx context.Context) ([]Notification, error) {
	var all []PatientHistory
	err := s.tx.RunInTx(ctx, db.ReadSnapshot, func(ctx context.Context) error {
		var err error
		all, err = s.repo.AllHistories(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return DueForAll(s.Today(), all)
}
