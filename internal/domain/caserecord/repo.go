package caserecord

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("case record not found")
	ErrReferenceNotFound = errors.New("patient or location not found")
)

type Repository interface {
	Create(ctx context.Context, r *CaseRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*CaseRecord, error)
	Update(ctx context.Context, r *CaseRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*CaseRecord, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CaseRecord, int, error)
	AllByPatient(ctx context.Context, patientID uuid.UUID) ([]CaseRecord, error)
}
