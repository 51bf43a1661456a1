package location

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(l *Location) error {
	l.Name = strings.TrimSpace(l.Name)
	l.State = strings.TrimSpace(l.State)
	var missing []string
	for field, v := range map[string]string{"name": l.Name, "address": l.Address, "street": l.Street, "zip": l.Zip, "state": l.State} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ValidationError{msg: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, l *Location) error {
	if err := validate(l); err != nil {
		return err
	}
	return s.repo.Create(ctx, l)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Location, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, upd LocationUpdate) (*Location, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(current)
	if err := validate(current); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, state string, limit, offset int) ([]*Location, int, error) {
	return s.repo.List(ctx, strings.TrimSpace(state), limit, offset)
}
