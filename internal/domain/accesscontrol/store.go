package accesscontrol

import (
	"context"
	"fmt"

	"academy/internal/db"

	"github.com/google/uuid"
)

type Store interface {
	Insert(ctx context.Context, userID uuid.UUID, role Role) error
	Upsert(ctx context.Context, userID uuid.UUID, role Role) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]RoleAssignment, error)
	HasRole(ctx context.Context, userID uuid.UUID, role Role) (bool, error)
	HasAnyRole(ctx context.Context, userID uuid.UUID) (bool, error)
	AnyAssignment(ctx context.Context) (bool, error)
	ListAdmins(ctx context.Context) ([]AdminUser, error)
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Insert(ctx context.Context, userID uuid.UUID, role Role) error {
	query := `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.db.Exec(ctx, query, userID, role); err != nil {
		if db.IsUniqueViolation(err, "user_roles_user_id_role_key") {
			return ErrConflict
		}
		if db.IsForeignKeyViolation(err, "user_roles_user_id_fkey") {
			return ErrUnknownUser
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// Upsert assigns the role, converging instead of failing when the
// (user, role) pair already exists.
func (r *Repository) Upsert(ctx context.Context, userID uuid.UUID, role Role) error {
	query := `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO UPDATE SET role = EXCLUDED.role
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.db.Exec(ctx, query, userID, role); err != nil {
		if db.IsForeignKeyViolation(err, "user_roles_user_id_fkey") {
			return ErrUnknownUser
		}
		return fmt.Errorf("upsert role: %w", err)
	}
	return nil
}

func (r *Repository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete roles: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]RoleAssignment, error) {
	query := `
		SELECT user_id, role, assigned_at
		FROM user_roles
		WHERE user_id = $1
		ORDER BY assigned_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleAssignment
	for rows.Next() {
		var ra RoleAssignment
		if err := rows.Scan(&ra.UserID, &ra.Role, &ra.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, ra)
	}
	return out, rows.Err()
}

func (r *Repository) HasRole(ctx context.Context, userID uuid.UUID, role Role) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2
		)
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, query, userID, role).Scan(&exists)
	return exists, err
}

func (r *Repository) HasAnyRole(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1)`, userID,
	).Scan(&exists)
	return exists, err
}

func (r *Repository) AnyAssignment(ctx context.Context) (bool, error) {
	var exists bool

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_roles)`).Scan(&exists)
	return exists, err
}

func (r *Repository) ListAdmins(ctx context.Context) ([]AdminUser, error) {
	query := `
		SELECT ur.user_id, i.email, ur.role, ur.assigned_at
		FROM user_roles ur
		JOIN identities i ON i.id = ur.user_id
		ORDER BY ur.assigned_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	admins := []AdminUser{}
	for rows.Next() {
		var a AdminUser
		if err := rows.Scan(&a.UserID, &a.Email, &a.Role, &a.RoleAssignedAt); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}
