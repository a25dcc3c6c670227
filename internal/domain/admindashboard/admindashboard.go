package admindashboard

import (
	"context"
	"fmt"

	"academy/internal/domain/coursereviews"
	"academy/internal/domain/registrations"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	registrations registrationStats
	reviews       reviewStats
	admins        adminLister
}

func NewService(regs registrationStats, reviews reviewStats, admins adminLister) *Service {
	return &Service{registrations: regs, reviews: reviews, admins: admins}
}

// GetOverview runs the three aggregate queries concurrently.
func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	var (
		regs    *registrations.Stats
		reviews *coursereviews.Stats
		admins  int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regs, err = s.registrations.Stats(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = s.reviews.Overall(ctx)
		return err
	})
	g.Go(func() error {
		list, err := s.admins.ListAdmins(ctx)
		if err != nil {
			return err
		}
		// a user holding both roles counts once
		seen := make(map[uuid.UUID]struct{}, len(list))
		for _, a := range list {
			seen[a.UserID] = struct{}{}
		}
		admins = len(seen)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get admin overview: %w", err)
	}

	return &Overview{
		TotalRegistrations:     regs.Total,
		PendingRegistrations:   regs.Pending,
		ConfirmedRegistrations: regs.Confirmed,
		ShippedRegistrations:   regs.Shipped,
		DeliveredRegistrations: regs.Delivered,
		CancelledRegistrations: regs.Cancelled,
		Revenue:                regs.Revenue,
		CourseBreakdown:        nonNil(regs.CourseBreakdown),
		PackageBreakdown:       nonNil(regs.PackageBreakdown),
		TotalReviews:           reviews.Total,
		AverageRating:          reviews.Average,
		TotalAdmins:            admins,
	}, nil
}

// nonNil keeps empty breakdowns as [] rather than null in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
