package storage

import (
	"academy/internal/domain/accesscontrol"
	"academy/internal/domain/admindashboard"
	"academy/internal/domain/coursereviews"
	"academy/internal/domain/identities"
	"academy/internal/domain/registrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	Identities     identities.Store
	AccessControl  accesscontrol.Store
	Registrations  registrations.Store
	CourseReviews  coursereviews.Store
	AdminDashboard *admindashboard.Service
}

func NewContainer(db *pgxpool.Pool, refs *registrations.ReferenceGenerator) *Container {
	roles := accesscontrol.NewRepository(db)
	regs := registrations.NewRepository(db, refs)
	reviews := coursereviews.NewRepository(db)

	return &Container{
		Identities:     identities.NewRepository(db),
		AccessControl:  roles,
		Registrations:  regs,
		CourseReviews:  reviews,
		AdminDashboard: admindashboard.NewService(regs, reviews, roles),
	}
}
