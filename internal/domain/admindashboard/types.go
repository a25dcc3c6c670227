package admindashboard

import (
	"context"

	"academy/internal/domain/accesscontrol"
	"academy/internal/domain/coursereviews"
	"academy/internal/domain/registrations"
)

type Overview struct {
	// Registrations
	TotalRegistrations     int64                        `json:"total_registrations"`
	PendingRegistrations   int64                        `json:"pending_registrations"`
	ConfirmedRegistrations int64                        `json:"confirmed_registrations"`
	ShippedRegistrations   int64                        `json:"shipped_registrations"`
	DeliveredRegistrations int64                        `json:"delivered_registrations"`
	CancelledRegistrations int64                        `json:"cancelled_registrations"`
	Revenue                int64                        `json:"revenue"` // dinars
	CourseBreakdown        []registrations.CourseCount  `json:"course_breakdown"`
	PackageBreakdown       []registrations.PackageCount `json:"package_breakdown"`

	// Reviews
	TotalReviews  int     `json:"total_reviews"`
	AverageRating float64 `json:"average_rating"`

	// Admins, counted per user rather than per role row
	TotalAdmins int `json:"total_admins"`
}

type registrationStats interface {
	Stats(ctx context.Context) (*registrations.Stats, error)
}

type reviewStats interface {
	Overall(ctx context.Context) (*coursereviews.Stats, error)
}

type adminLister interface {
	ListAdmins(ctx context.Context) ([]accesscontrol.AdminUser, error)
}
