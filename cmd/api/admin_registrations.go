package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"academy/internal/domain/registrations"
	"academy/internal/params"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type RegistrationListResponse struct {
	Registrations []registrations.Registration `json:"registrations"`
	Pagination    params.Pagination            `json:"pagination"`
	Status        string                       `json:"status"` // "" when not filtered
}

type UpdateRegistrationStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

// adminListRegistrationsHandler godoc
//
//	@Summary		List registrations (admin)
//	@Description	Paginated registrations, newest first, optionally filtered by status.
//	@Tags			admin
//	@Produce		json
//	@Param			status	query		string	false	"pending|confirmed|shipped|delivered|cancelled"
//	@Param			page	query		int		false	"Page number"		default(1)
//	@Param			limit	query		int		false	"Items per page"	default(15)
//	@Success		200		{object}	RegistrationListResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/registrations [get]
func (app *application) adminListRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := params.ParsePagination(q)

	status := registrations.Status(strings.TrimSpace(q.Get("status")))
	if status != "" && !status.Valid() {
		app.badRequestResponse(w, r, fmt.Errorf("invalid status %q", status))
		return
	}

	list, total, err := app.store.Registrations.List(r.Context(), status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if list == nil {
		list = []registrations.Registration{}
	}
	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, RegistrationListResponse{
		Registrations: list,
		Pagination:    p,
		Status:        string(status),
	})
}

// adminUpdateRegistrationStatusHandler godoc
//
//	@Summary		Change registration status (admin)
//	@Description	Sets any of the five statuses, so a mistaken change can be undone.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			registrationID	path		string							true	"Registration ID"
//	@Param			payload			body		UpdateRegistrationStatusPayload	true	"New status"
//	@Success		200				{object}	registrations.Registration
//	@Failure		400				{object}	error
//	@Failure		404				{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/registrations/{registrationID}/status [patch]
func (app *application) adminUpdateRegistrationStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "registrationID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid registration ID"))
		return
	}

	var payload UpdateRegistrationStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reg, err := app.store.Registrations.UpdateStatus(r.Context(), id, registrations.Status(payload.Status))
	if err != nil {
		if errors.Is(err, registrations.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("registration status changed",
		"registration_id", reg.ID, "status", reg.Status, "by", getIdentityFromContext(r).ID)

	app.jsonResponse(w, http.StatusOK, reg)
}
