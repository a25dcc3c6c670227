package identities

import (
	"context"
	"errors"
	"fmt"

	"academy/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Store interface {
	Create(ctx context.Context, identity *Identity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Create(ctx context.Context, identity *Identity) error {
	query := `
		INSERT INTO identities (id, email, password_hash, email_confirmed)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	identity.Email = NormalizeEmail(identity.Email)

	err := r.db.QueryRow(ctx, query,
		identity.ID, identity.Email, identity.Password.Hash(), identity.EmailConfirmed,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "identities_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	query := `
		SELECT id, email, password_hash, email_confirmed, created_at, updated_at
		FROM identities
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	query := `
		SELECT id, email, password_hash, email_confirmed, created_at, updated_at
		FROM identities
		WHERE email = $1
	`
	return r.getOne(ctx, query, NormalizeEmail(email))
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var (
		identity Identity
		hash     []byte
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&hash,
		&identity.EmailConfirmed,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	identity.Password.SetHash(hash)
	return &identity, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err, "user_roles_user_id_fkey") {
			return ErrHasRoles
		}
		return fmt.Errorf("delete identity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
