package registrations

import (
	"context"
	"errors"
	"fmt"

	"academy/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const columns = `id, reference, first_name, surname, date_of_birth::text, place_of_birth,
	address, phone, wilaya, email, course_slug, selected_courses, package_type, payment_method,
	total_price, status, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
	refs *ReferenceGenerator
}

func NewRepository(pool *pgxpool.Pool, refs *ReferenceGenerator) *Repository {
	if refs == nil {
		panic("registrations: ReferenceGenerator is nil")
	}
	return &Repository{pool: pool, refs: refs}
}

// Create stores a pending registration and assigns its reference in the same
// transaction.
func (r *Repository) Create(ctx context.Context, reg *Registration) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	reg.Status = StatusPending

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int64
		err := tx.QueryRow(ctx, `
			INSERT INTO course_registrations
				(id, first_name, surname, date_of_birth, place_of_birth, address, phone, wilaya,
				 email, course_slug, selected_courses, package_type, payment_method, total_price, status)
			VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING seq, created_at, updated_at
		`,
			reg.ID, reg.FirstName, reg.Surname, reg.DateOfBirth, reg.PlaceOfBirth, reg.Address, reg.Phone, reg.Wilaya,
			reg.Email, reg.CourseSlug, reg.SelectedCourses, reg.PackageType, reg.PaymentMethod, reg.TotalPrice, reg.Status,
		).Scan(&seq, &reg.CreatedAt, &reg.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}

		ref, err := r.refs.Generate(seq)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE course_registrations SET reference = $1 WHERE id = $2`, ref, reg.ID); err != nil {
			return fmt.Errorf("set reference: %w", err)
		}
		reg.Reference = ref
		return nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM course_registrations WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

// List returns one page of registrations, newest first, and the total count
// for the filter. An empty status lists everything.
func (r *Repository) List(ctx context.Context, status Status, limit, offset int) ([]Registration, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM course_registrations
		WHERE ($1 = '' OR status = $1)
	`, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM course_registrations
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	out := []Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *reg)
	}
	return out, total, rows.Err()
}

// UpdateStatus sets any valid status; there is no transition order.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		UPDATE course_registrations
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+columns, status, id)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

// Stats counts registrations per status and breaks them down by course and
// package. Revenue is the sum of total_price over every registration.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'shipped'),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(total_price), 0)
		FROM course_registrations
	`).Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Shipped, &s.Delivered, &s.Cancelled, &s.Revenue)
	if err != nil {
		return nil, fmt.Errorf("registration stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT course_slug, COUNT(*)
		FROM course_registrations
		GROUP BY course_slug
		ORDER BY COUNT(*) DESC, course_slug
	`)
	if err != nil {
		return nil, fmt.Errorf("course breakdown: %w", err)
	}
	s.CourseBreakdown, err = pgx.CollectRows(rows, pgx.RowToStructByPos[CourseCount])
	if err != nil {
		return nil, fmt.Errorf("course breakdown: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT package_type, COUNT(*)
		FROM course_registrations
		GROUP BY package_type
		ORDER BY package_type
	`)
	if err != nil {
		return nil, fmt.Errorf("package breakdown: %w", err)
	}
	s.PackageBreakdown, err = pgx.CollectRows(rows, pgx.RowToStructByPos[PackageCount])
	if err != nil {
		return nil, fmt.Errorf("package breakdown: %w", err)
	}

	return &s, nil
}

func scanRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(
		&reg.ID,
		&reg.Reference,
		&reg.FirstName,
		&reg.Surname,
		&reg.DateOfBirth,
		&reg.PlaceOfBirth,
		&reg.Address,
		&reg.Phone,
		&reg.Wilaya,
		&reg.Email,
		&reg.CourseSlug,
		&reg.SelectedCourses,
		&reg.PackageType,
		&reg.PaymentMethod,
		&reg.TotalPrice,
		&reg.Status,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
