package identity

import (
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/covidtrack/covid-server/internal/platform/auth"
)

// DefaultDOB is used for patient profiles created without a date of birth.
var DefaultDOB = civil.Date{Year: 2000, Month: time.January, Day: 1}

// User maps to the users table.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Patient maps to the patients table. For accounts with role user the
// patient id equals the user id.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Name      string     `db:"name" json:"name"`
	Contact   string     `db:"contact" json:"contact"`
	DOB       civil.Date `db:"dob" json:"dob"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// NewAccount carries the fields for registration and admin user creation.
type NewAccount struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      auth.Role   `json:"role"`
	Contact   string      `json:"contact"`
	DOB       *civil.Date `json:"dob"`
}

// UserUpdate lists the user fields an administrator may change.
type UserUpdate struct {
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Name      *string    `json:"name"`
	Email     *string    `json:"email"`
	Password  *string    `json:"password"`
	Role      *auth.Role `json:"role"`
}

func (u UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Name == nil &&
		u.Email == nil && u.Password == nil && u.Role == nil
}

// OnlyRole reports whether the update changes the role and nothing else.
func (u UserUpdate) OnlyRole() bool {
	return u.Role != nil && u.FirstName == nil && u.LastName == nil &&
		u.Name == nil && u.Email == nil && u.Password == nil
}

// PatientUpdate lists the patient fields that may change.
type PatientUpdate struct {
	FirstName *string     `json:"first_name"`
	LastName  *string     `json:"last_name"`
	Name      *string     `json:"name"`
	Contact   *string     `json:"contact"`
	DOB       *civil.Date `json:"dob"`
}

func (u PatientUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Name == nil && u.Contact == nil && u.DOB == nil
}

func (u PatientUpdate) Apply(p *Patient) {
	if u.FirstName != nil {
		p.FirstName = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		p.LastName = strings.TrimSpace(*u.LastName)
	}
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Contact != nil {
		p.Contact = strings.TrimSpace(*u.Contact)
	}
	if u.DOB != nil {
		p.DOB = *u.DOB
	}
}

// PatientFor builds the patient profile that accompanies a user account.
func PatientFor(u *User, contact string, dob *civil.Date) *Patient {
	p := &Patient{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Name:      u.Name,
		Contact:   contact,
		DOB:       DefaultDOB,
	}
	if dob != nil {
		p.DOB = *dob
	}
	return p
}

// UserSummary is the user view returned with a token.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}
