package location

import (
	"time"

	"github.com/google/uuid"
)

// Location is a hospital or clinic where cases are diagnosed.
type Location struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Street    string    `db:"street" json:"street"`
	Zip       string    `db:"zip" json:"zip"`
	State     string    `db:"state" json:"state"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type LocationUpdate struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Street  *string `json:"street"`
	Zip     *string `json:"zip"`
	State   *string `json:"state"`
}

func (u LocationUpdate) Empty() bool {
	return u.Name == nil && u.Address == nil && u.Street == nil && u.Zip == nil && u.State == nil
}

func (u LocationUpdate) Apply(l *Location) {
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.Address != nil {
		l.Address = *u.Address
	}
	if u.Street != nil {
		l.Street = *u.Street
	}
	if u.Zip != nil {
		l.Zip = *u.Zip
	}
	if u.State != nil {
		l.State = *u.State
	}
}
