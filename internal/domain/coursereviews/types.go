package coursereviews

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID           uuid.UUID `json:"id"`
	CourseSlug   string    `json:"course_slug"`
	ReviewerName string    `json:"reviewer_name"`
	Rating       int       `json:"rating"`            // 1-5
	Comment      string    `json:"comment,omitempty"` // empty when the reviewer only rated
	CreatedAt    time.Time `json:"created_at"`
}

type Stats struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
}

type Store interface {
	Create(ctx context.Context, review *Review) error
	ListByCourse(ctx context.Context, courseSlug string, limit int) ([]Review, error)
	Stats(ctx context.Context, courseSlug string) (*Stats, error)
	// Overall aggregates every course, for the dashboard.
	Overall(ctx context.Context) (*Stats, error)
}
