// Package authz answers whether an authenticated caller holds a role.
//
// Every privileged mutation consults a Checker on each request. Results are
// never cached because role membership can change between calls.
package authz

import (
	"context"
	"errors"
	"fmt"

	"academy/internal/domain/accesscontrol"

	"github.com/google/uuid"
)

// ErrUnavailable wraps role store failures so callers can tell "forbidden"
// apart from "could not decide".
var ErrUnavailable = errors.New("authorization check unavailable")

type Checker interface {
	HasRole(ctx context.Context, userID uuid.UUID, role accesscontrol.Role) (bool, error)
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

type roleQuerier interface {
	HasRole(ctx context.Context, userID uuid.UUID, role accesscontrol.Role) (bool, error)
	HasAnyRole(ctx context.Context, userID uuid.UUID) (bool, error)
}

type RoleChecker struct {
	roles roleQuerier
}

func NewRoleChecker(roles roleQuerier) *RoleChecker {
	return &RoleChecker{roles: roles}
}

func (c *RoleChecker) HasRole(ctx context.Context, userID uuid.UUID, role accesscontrol.Role) (bool, error) {
	if userID == uuid.Nil || !role.Valid() {
		return false, nil
	}
	ok, err := c.roles.HasRole(ctx, userID, role)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// IsAdmin reports whether the user holds any admin role.
func (c *RoleChecker) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	ok, err := c.roles.HasAnyRole(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}
