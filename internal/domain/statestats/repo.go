package statestats

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("state stat not found")
	ErrManagerNotFound = errors.New("managing user not found")
)

type Repository interface {
	Create(ctx context.Context, s *StateStat) error
	GetByID(ctx context.Context, id uuid.UUID) (*StateStat, error)
	Update(ctx context.Context, s *StateStat) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, state string, limit, offset int) ([]*StateStat, int, error)
}
