package main

import (
	"net/http"

	"academy/internal/provisioning"
)

type CreateAdminPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type CreateAdminResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type DeleteAdminPayload struct {
	UserID string `json:"userId"`
}

type SetupInitialAdminResponse struct {
	Success      bool   `json:"success,omitempty"`
	Message      string `json:"message"`
	Email        string `json:"email,omitempty"`
	AlreadySetup bool   `json:"alreadySetup,omitempty"`
}

// createAdminHandler godoc
//
//	@Summary		Create an admin account
//	@Description	Super admins create a confirmed account holding the admin or super_admin role.
//	@Tags			functions
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateAdminPayload	true	"New admin"
//	@Success		200		{object}	CreateAdminResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/functions/create-admin [post]
func (app *application) createAdminHandler(w http.ResponseWriter, r *http.Request) {
	// A body that does not decode is treated as empty so authentication and
	// authorization are still checked before input validation.
	var payload CreateAdminPayload
	if err := readLenientJSON(w, r, &payload); err != nil {
		payload = CreateAdminPayload{}
	}

	id, err := app.provisioner.CreateAdmin(r.Context(), bearerToken(r), provisioning.CreateAdminInput{
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		app.provisioningErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, &CreateAdminResponse{Success: true, UserID: id.String()})
}

// deleteAdminHandler godoc
//
//	@Summary		Delete an admin account
//	@Description	Super admins remove every role of another account and then the account itself.
//	@Tags			functions
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	DeleteAdminPayload	true	"Target account"
//	@Success		200
//	@Failure		400	{object}	error
//	@Failure		401	{object}	error
//	@Failure		403	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/functions/delete-admin [post]
func (app *application) deleteAdminHandler(w http.ResponseWriter, r *http.Request) {
	var payload DeleteAdminPayload
	if err := readLenientJSON(w, r, &payload); err != nil {
		payload = DeleteAdminPayload{}
	}

	if err := app.provisioner.DeleteAdmin(r.Context(), bearerToken(r), payload.UserID); err != nil {
		app.provisioningErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// setupInitialAdminHandler godoc
//
//	@Summary		Create the first super admin
//	@Description	Creates the well-known super admin account when no role has been assigned yet. Safe to call repeatedly.
//	@Tags			functions
//	@Produce		json
//	@Success		200	{object}	SetupInitialAdminResponse
//	@Failure		500	{object}	error
//	@Router			/functions/setup-initial-admin [post]
func (app *application) setupInitialAdminHandler(w http.ResponseWriter, r *http.Request) {
	res, err := app.provisioner.BootstrapInitialAdmin(r.Context())
	if err != nil {
		app.provisioningErrorResponse(w, r, err)
		return
	}

	if res.AlreadySetup {
		writeJSON(w, http.StatusOK, &SetupInitialAdminResponse{
			Message:      "Initial admin already exists",
			AlreadySetup: true,
		})
		return
	}

	writeJSON(w, http.StatusOK, &SetupInitialAdminResponse{
		Success: true,
		Message: "Initial super admin created",
		Email:   res.Email,
	})
}
