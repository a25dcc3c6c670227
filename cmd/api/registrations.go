package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"academy/internal/domain/registrations"
	"academy/internal/jobs"
)

type CreateRegistrationPayload struct {
	FirstName       string   `json:"first_name" validate:"required,min=2,max=50"`
	Surname         string   `json:"surname" validate:"required,min=2,max=50"`
	DateOfBirth     string   `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	PlaceOfBirth    string   `json:"place_of_birth" validate:"required,min=2,max=100"`
	Address         string   `json:"address" validate:"required,min=5,max=200"`
	Phone           string   `json:"phone" validate:"required,min=9,max=15"`
	Wilaya          string   `json:"wilaya" validate:"omitempty,max=100"`
	Email           string   `json:"email" validate:"omitempty,email,max=255"`
	SelectedCourses []string `json:"selected_courses" validate:"required,min=1,max=3,unique,dive,slug,max=100"`
	PackageType     string   `json:"package_type" validate:"required,oneof=single double"`
	PaymentMethod   string   `json:"payment_method" validate:"required,oneof=cash card"`
}

func (p *CreateRegistrationPayload) trim() {
	for _, f := range []*string{&p.FirstName, &p.Surname, &p.DateOfBirth, &p.PlaceOfBirth, &p.Address, &p.Phone, &p.Wilaya, &p.Email} {
		*f = strings.TrimSpace(*f)
	}
}

// createRegistrationHandler godoc
//
//	@Summary		Submit an enrollment
//	@Description	Stores a pending course registration and notifies staff in the background.
//	@Tags			registrations
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateRegistrationPayload	true	"Enrollment form"
//	@Success		201		{object}	registrations.Registration
//	@Failure		400		{object}	error
//	@Failure		429		{object}	error
//	@Failure		500		{object}	error
//	@Router			/registrations [post]
func (app *application) createRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateRegistrationPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	payload.trim()
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	pkg := registrations.Package(payload.PackageType)
	if len(payload.SelectedCourses) > pkg.MaxCourses() {
		app.badRequestResponse(w, r, fmt.Errorf("the %s package covers at most %d course(s)", pkg, pkg.MaxCourses()))
		return
	}

	// the price follows the package; clients do not send it
	reg := &registrations.Registration{
		FirstName:       payload.FirstName,
		Surname:         payload.Surname,
		DateOfBirth:     payload.DateOfBirth,
		PlaceOfBirth:    payload.PlaceOfBirth,
		Address:         payload.Address,
		Phone:           payload.Phone,
		Wilaya:          payload.Wilaya,
		Email:           payload.Email,
		CourseSlug:      payload.SelectedCourses[0],
		SelectedCourses: payload.SelectedCourses,
		PackageType:     pkg,
		PaymentMethod:   registrations.PaymentMethod(payload.PaymentMethod),
		TotalPrice:      pkg.Price(),
	}

	if err := app.store.Registrations.Create(r.Context(), reg); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	// The registration is stored; a queue outage only costs the staff email.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 3*time.Second)
	defer cancel()
	if err := app.queue.EnqueueRegistrationNotify(ctx, jobs.RegistrationNotifyPayload{
		RegistrationID: reg.ID.String(),
		Reference:      reg.Reference,
		Courses:        reg.SelectedCourses,
		FullName:       reg.FullName(),
		Email:          reg.Email,
		Phone:          reg.Phone,
		PackageType:    string(reg.PackageType),
		PaymentMethod:  string(reg.PaymentMethod),
		TotalPrice:     reg.TotalPrice,
	}); err != nil {
		app.logger.Errorw("failed to enqueue registration notification", "reference", reg.Reference, "error", err)
	}

	app.jsonResponse(w, http.StatusCreated, reg)
}
