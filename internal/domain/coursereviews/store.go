package coursereviews

import (
	"context"
	"fmt"

	"academy/internal/db"

	"github.com/google/uuid"
)

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Create(ctx context.Context, review *Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	query := `
		INSERT INTO course_reviews (id, course_slug, reviewer_name, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		review.ID,
		review.CourseSlug,
		review.ReviewerName,
		review.Rating,
		review.Comment,
	).Scan(&review.CreatedAt)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *Repository) ListByCourse(ctx context.Context, courseSlug string, limit int) ([]Review, error) {
	query := `
		SELECT id, course_slug, reviewer_name, rating, comment, created_at
		FROM course_reviews
		WHERE course_slug = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, courseSlug, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var review Review
		if err := rows.Scan(
			&review.ID,
			&review.CourseSlug,
			&review.ReviewerName,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *Repository) Stats(ctx context.Context, courseSlug string) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(id), COALESCE(AVG(rating), 0)
		FROM course_reviews
		WHERE course_slug = $1
	`, courseSlug).Scan(&s.Total, &s.Average)
	if err != nil {
		return nil, fmt.Errorf("review stats: %w", err)
	}
	return &s, nil
}

func (r *Repository) Overall(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `SELECT COUNT(id), COALESCE(AVG(rating), 0) FROM course_reviews`).Scan(&s.Total, &s.Average)
	if err != nil {
		return nil, fmt.Errorf("overall review stats: %w", err)
	}
	return &s, nil
}
