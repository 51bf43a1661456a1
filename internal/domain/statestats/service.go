package statestats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/covidtrack/covid-server/internal/platform/auth"
)

// ErrForbidden is returned when a manager touches a row assigned to someone
// else.
var ErrForbidden = errors.New("state stat is managed by another user")

type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(s *StateStat) error {
	s.State = strings.TrimSpace(s.State)
	if s.State == "" {
		return invalid("state is required")
	}
	for field, v := range map[string]int64{"confirmed": s.Confirmed, "recovered": s.Recovered, "active": s.Active, "deaths": s.Deaths} {
		if v < 0 {
			return invalid("%s must not be negative", field)
		}
	}
	return nil
}

// canManage reports whether actor may change s. Administrators may change
// any row; managers only unassigned rows and their own.
func canManage(actor auth.Principal, s *StateStat) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleManager:
		return s.ManagedByUserID == nil || *s.ManagedByUserID == actor.UserID
	default:
		return false
	}
}

// Create stores s. A manager creating a row becomes its manager.
func (svc *Service) Create(ctx context.Context, actor auth.Principal, s *StateStat) error {
	if err := validate(s); err != nil {
		return err
	}
	if actor.Role == auth.RoleManager {
		id := actor.UserID
		s.ManagedByUserID = &id
	}
	return svc.repo.Create(ctx, s)
}

func (svc *Service) Get(ctx context.Context, id uuid.UUID) (*StateStat, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) List(ctx context.Context, state string, limit, offset int) ([]*StateStat, int, error) {
	return svc.repo.List(ctx, strings.TrimSpace(state), limit, offset)
}

func (svc *Service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, upd StateStatUpdate) (*StateStat, error) {
	current, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, current) {
		return nil, ErrForbidden
	}
	if actor.Role == auth.RoleManager && upd.ManagedByUserID != nil && *upd.ManagedByUserID != actor.UserID {
		return nil, ErrForbidden
	}
	upd.Apply(current)
	if err := validate(current); err != nil {
		return nil, err
	}
	if err := svc.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (svc *Service) Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	current, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(actor, current) {
		return ErrForbidden
	}
	return svc.repo.Delete(ctx, id)
}
