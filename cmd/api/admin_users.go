package main

import (
	"net/http"
	"time"

	"academy/internal/domain/accesscontrol"

	"github.com/google/uuid"
)

type AdminMeResponse struct {
	ID           uuid.UUID            `json:"id"`
	Email        string               `json:"email"`
	Roles        []accesscontrol.Role `json:"roles"`
	IsSuperAdmin bool                 `json:"isSuperAdmin"`
	CreatedAt    time.Time            `json:"created_at"`
}

// adminMeHandler godoc
//
//	@Summary		Current admin
//	@Description	Returns the signed-in account with its roles. The console uses isSuperAdmin to show the admin management page.
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	AdminMeResponse
//	@Failure		401	{object}	error
//	@Failure		403	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/me [get]
func (app *application) adminMeHandler(w http.ResponseWriter, r *http.Request) {
	identity := getIdentityFromContext(r)

	assignments, err := app.store.AccessControl.ListByUser(r.Context(), identity.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := AdminMeResponse{
		ID:        identity.ID,
		Email:     identity.Email,
		Roles:     make([]accesscontrol.Role, 0, len(assignments)),
		CreatedAt: identity.CreatedAt,
	}
	for _, a := range assignments {
		resp.Roles = append(resp.Roles, a.Role)
		if a.Role == accesscontrol.RoleSuperAdmin {
			resp.IsSuperAdmin = true
		}
	}

	app.jsonResponse(w, http.StatusOK, resp)
}

// listAdminsHandler godoc
//
//	@Summary		List admins
//	@Description	Every role assignment joined with the account email, oldest first.
//	@Tags			admin
//	@Produce		json
//	@Success		200	{array}		accesscontrol.AdminUser
//	@Failure		401	{object}	error
//	@Failure		403	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/users [get]
func (app *application) listAdminsHandler(w http.ResponseWriter, r *http.Request) {
	admins, err := app.store.AccessControl.ListAdmins(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if admins == nil {
		admins = []accesscontrol.AdminUser{}
	}

	app.jsonResponse(w, http.StatusOK, admins)
}
