package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is the caller's role as resolved by the identity provider.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
	RoleHolder  Role = "holder"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCashier, RoleHolder:
		return true
	}
	return false
}

// Identity is an already authenticated caller.
type Identity struct {
	AccountID uuid.UUID
	Role      Role
	// HolderRef is the holder's external identifier; empty for staff.
	HolderRef string
}

// HasRole reports whether the identity has any of roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the identity acts on behalf of the operator.
func (i Identity) IsStaff() bool {
	return i.HasRole(RoleAdmin, RoleManager, RoleCashier)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
