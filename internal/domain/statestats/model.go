package statestats

import (
	"time"

	"github.com/google/uuid"
)

// StateStat holds the aggregate case counts reported for one state.
type StateStat struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	State           string     `db:"state" json:"state"`
	Confirmed       int64      `db:"confirmed" json:"confirmed"`
	Recovered       int64      `db:"recovered" json:"recovered"`
	Active          int64      `db:"active" json:"active"`
	Deaths          int64      `db:"deaths" json:"deaths"`
	ManagedByUserID *uuid.UUID `db:"managed_by_user_id" json:"managed_by_user_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

type StateStatUpdate struct {
	State           *string    `json:"state"`
	Confirmed       *int64     `json:"confirmed"`
	Recovered       *int64     `json:"recovered"`
	Active          *int64     `json:"active"`
	Deaths          *int64     `json:"deaths"`
	ManagedByUserID *uuid.UUID `json:"managed_by_user_id"`
}

func (u StateStatUpdate) Empty() bool {
	return u.State == nil && u.Confirmed == nil && u.Recovered == nil &&
		u.Active == nil && u.Deaths == nil && u.ManagedByUserID == nil
}

func (u StateStatUpdate) Apply(s *StateStat) {
	if u.State != nil {
		s.State = *u.State
	}
	if u.Confirmed != nil {
		s.Confirmed = *u.Confirmed
	}
	if u.Recovered != nil {
		s.Recovered = *u.Recovered
	}
	if u.Active != nil {
		s.Active = *u.Active
	}
	if u.Deaths != nil {
		s.Deaths = *u.Deaths
	}
	if u.ManagedByUserID != nil {
		id := *u.ManagedByUserID
		s.ManagedByUserID = &id
	}
}
