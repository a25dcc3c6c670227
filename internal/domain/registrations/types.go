package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("registration not found")
	QueryTimeoutDuration = time.Second * 5
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the five statuses. Admins may move a
// registration to any valid status, including back from cancelled.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Package string

const (
	PackageSingle Package = "single"
	PackageDouble Package = "double"
)

// Price is the package price in whole dinars.
func (p Package) Price() int64 {
	switch p {
	case PackageSingle:
		return 4900
	case PackageDouble:
		return 9800
	}
	return 0
}

// MaxCourses is how many courses the package covers.
func (p Package) MaxCourses() int {
	switch p {
	case PackageSingle:
		return 1
	case PackageDouble:
		return 3
	}
	return 0
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Registration is one enrollment form submission. CourseSlug is the first of
// SelectedCourses and is what the dashboard groups by.
type Registration struct {
	ID              uuid.UUID     `json:"id"`
	Reference       string        `json:"reference"`
	FirstName       string        `json:"first_name"`
	Surname         string        `json:"surname"`
	DateOfBirth     string        `json:"date_of_birth"` // YYYY-MM-DD
	PlaceOfBirth    string        `json:"place_of_birth"`
	Address         string        `json:"address"`
	Phone           string        `json:"phone"`
	Wilaya          string        `json:"wilaya"`
	Email           string        `json:"email,omitempty"`
	CourseSlug      string        `json:"course_slug"`
	SelectedCourses []string      `json:"selected_courses"`
	PackageType     Package       `json:"package_type"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	TotalPrice      int64         `json:"total_price"`
	Status          Status        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (r *Registration) FullName() string {
	if r.Surname == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.Surname
}

type CourseCount struct {
	CourseSlug string `json:"course_slug"`
	Count      int64  `json:"count"`
}

type PackageCount struct {
	PackageType Package `json:"package_type"`
	Count       int64   `json:"count"`
}

// Stats are the dashboard aggregates. CourseBreakdown is sorted by count,
// highest first.
type Stats struct {
	Total            int64          `json:"total"`
	Pending          int64          `json:"pending"`
	Confirmed        int64          `json:"confirmed"`
	Shipped          int64          `json:"shipped"`
	Delivered        int64          `json:"delivered"`
	Cancelled        int64          `json:"cancelled"`
	Revenue          int64          `json:"revenue"`
	CourseBreakdown  []CourseCount  `json:"course_breakdown"`
	PackageBreakdown []PackageCount `json:"package_breakdown"`
}

type Store interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Registration, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Registration, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Registration, error)
	Stats(ctx context.Context) (*Stats, error)
}
