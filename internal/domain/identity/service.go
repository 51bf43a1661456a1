package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covidtrack/covid-server/internal/platform/auth"
	"github.com/covidtrack/covid-server/internal/platform/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError reports a request that fails field validation.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// TokenIssuer mints access tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(p auth.Principal) (string, time.Time, error)
}

type Service struct {
	users      UserRepository
	patients   PatientRepository
	tx         db.TxRunner
	tokens     TokenIssuer
	bcryptCost int
	// dummyHash keeps failed logins for unknown emails as slow as wrong passwords.
	dummyHash string
}

func NewService(users UserRepository, patients PatientRepository, tx db.TxRunner, tokens TokenIssuer, bcryptCost int) *Service {
	dummy, _ := auth.HashPassword("not-a-real-password!", bcryptCost)
	return &Service{
		users:      users,
		patients:   patients,
		tx:         tx,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}
}

// -- Accounts --

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) validateAccount(a *NewAccount) error {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Name = strings.TrimSpace(a.Name)
	a.Email = normaliseEmail(a.Email)
	if a.FirstName == "" || a.LastName == "" || a.Name == "" || a.Email == "" || a.Password == "" {
		return invalid("missing required fields: first_name, last_name, name, email and password are required")
	}
	if a.Role == "" {
		a.Role = auth.RoleUser
	}
	if _, err := auth.ParseRole(string(a.Role)); err != nil {
		return invalid("invalid role")
	}
	if err := auth.ValidateEmail(a.Email); err != nil {
		return invalid("%s", err.Error())
	}
	if err := auth.ValidatePassword(a.Password); err != nil {
		return invalid("%s", err.Error())
	}
	if a.DOB != nil && !a.DOB.IsValid() {
		return invalid("invalid dob")
	}
	return nil
}

// createAccount inserts the user and, for role user, its patient profile in
// one transaction.
func (s *Service) createAccount(ctx context.Context, a NewAccount) (*User, error) {
	if err := s.validateAccount(&a); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(a.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: hash,
		Role:         a.Role,
	}
	err = s.tx.RunInTx(ctx, pgx.TxOptions{}, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if u.Role == auth.RoleUser {
			return s.patients.Create(ctx, PatientFor(u, strings.TrimSpace(a.Contact), a.DOB))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) issue(u *User) (*AuthResult, error) {
	token, exp, err := s.tokens.Issue(auth.Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: exp,
		User:      UserSummary{ID: u.ID, Email: u.Email, Role: u.Role},
	}, nil
}

// Register creates a self-service account. Only the user role may be
// chosen here; staff accounts are created by an administrator.
func (s *Service) Register(ctx context.Context, a NewAccount) (*AuthResult, error) {
	if a.Role != "" && a.Role != auth.RoleUser {
		return nil, fmt.Errorf("%w: self-registration is limited to role user", ErrForbidden)
	}
	u, err := s.createAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, normaliseEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		auth.CheckPassword(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// -- Users --

func (s *Service) CreateUser(ctx context.Context, a NewAccount) (*User, error) {
	return s.createAccount(ctx, a)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

// UpdateUser applies upd on behalf of actor. Managers may only change the
// role; administrators may change every listed field.
func (s *Service) UpdateUser(ctx context.Context, actor auth.Principal, id uuid.UUID, upd UserUpdate) (*User, error) {
	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleManager:
		if !upd.OnlyRole() {
			return nil, fmt.Errorf("%w: managers can only update user roles", ErrForbidden)
		}
	case auth.RoleUser:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}

	if upd.Role != nil {
		if _, err := auth.ParseRole(string(*upd.Role)); err != nil {
			return nil, invalid("invalid role")
		}
	}
	if upd.Email != nil {
		e := normaliseEmail(*upd.Email)
		if err := auth.ValidateEmail(e); err != nil {
			return nil, invalid("%s", err.Error())
		}
		upd.Email = &e
	}
	var newHash string
	if upd.Password != nil {
		if err := auth.ValidatePassword(*upd.Password); err != nil {
			return nil, invalid("%s", err.Error())
		}
		h, err := auth.HashPassword(*upd.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		newHash = h
	}

	var out *User
	err := s.tx.RunInTx(ctx, pgx.TxOptions{}, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if upd.FirstName != nil {
			u.FirstName = strings.TrimSpace(*upd.FirstName)
		}
		if upd.LastName != nil {
			u.LastName = strings.TrimSpace(*upd.LastName)
		}
		if upd.Name != nil {
			u.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if newHash != "" {
			u.PasswordHash = newHash
		}
		if upd.Role != nil && *upd.Role != u.Role {
			if err := s.syncPatient(ctx, u, *upd.Role); err != nil {
				return err
			}
			u.Role = *upd.Role
		}
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

// RoleChange describes the outcome of ChangeRole.
type RoleChange struct {
	User    *User     `json:"user"`
	OldRole auth.Role `json:"old_role"`
	NewRole auth.Role `json:"new_role"`
}

// ChangeRole moves a user to role. Demoting staff to user creates the
// patient profile; promoting a user to staff removes it.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, role auth.Role) (*RoleChange, error) {
	if _, err := auth.ParseRole(string(role)); err != nil {
		return nil, invalid("invalid role")
	}
	var change *RoleChange
	err := s.tx.RunInTx(ctx, pgx.TxOptions{}, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		old := u.Role
		if err := s.syncPatient(ctx, u, role); err != nil {
			return err
		}
		u.Role = role
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		change = &RoleChange{User: u, OldRole: old, NewRole: role}
		return nil
	})
	return change, err
}

// syncPatient keeps the patient profile in step with a role transition.
func (s *Service) syncPatient(ctx context.Context, u *User, to auth.Role) error {
	from := u.Role
	switch {
	case from.IsStaff() && to == auth.RoleUser:
		_, err := s.patients.GetByID(ctx, u.ID)
		if errors.Is(err, ErrPatientNotFound) {
			return s.patients.Create(ctx, PatientFor(u, "", nil))
		}
		return err
	case from == auth.RoleUser && to.IsStaff():
		err := s.patients.Delete(ctx, u.ID)
		if errors.Is(err, ErrPatientNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// -- Patients --

func validatePatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Name = strings.TrimSpace(p.Name)
	if p.FirstName == "" || p.LastName == "" {
		return invalid("first_name and last_name are required")
	}
	if p.Name == "" {
		p.Name = p.FirstName + " " + p.LastName
	}
	if p.DOB == (civil.Date{}) {
		p.DOB = DefaultDOB
	}
	if !p.DOB.IsValid() {
		return invalid("invalid dob")
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(p)
	if err := validatePatient(p); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}
