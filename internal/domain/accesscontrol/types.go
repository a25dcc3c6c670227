package accesscontrol

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("role assignment not found")
	ErrConflict          = errors.New("role already assigned")
	ErrUnknownUser       = errors.New("role assigned to an identity that does not exist")
	QueryTimeoutDuration = time.Second * 5
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// RoleAssignment is the fact that a given identity holds a given role.
type RoleAssignment struct {
	UserID     uuid.UUID `json:"user_id"`
	Role       Role      `json:"role"`
	AssignedAt time.Time `json:"assigned_at"`
}

// AdminUser is the listing projection of identities joined with their roles.
type AdminUser struct {
	UserID         uuid.UUID `json:"user_id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	RoleAssignedAt time.Time `json:"role_assigned_at"`
}
