package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ParseRole accepts only the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleManager, RoleUser:
		return r, nil
	default:
		return "", fmt.Errorf("invalid role: %q", s)
	}
}

// IsStaff reports whether the role manages records rather than owning a
// patient profile.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

// Principal is the verified caller attached to a request.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
