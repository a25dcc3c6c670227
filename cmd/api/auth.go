package main

import (
	"errors"
	"net/http"

	"academy/internal/domain/identities"
)

type CreateTokenPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=3,max=72"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
}

// createTokenHandler godoc
//
//	@Summary		Login to get Token
//	@Description	Exchanges email and password for a bearer token used by the admin console.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateTokenPayload	true	"Credentials"
//	@Success		200		{object}	TokenResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Router			/authentication/token [post]
func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	identity, err := app.store.Identities.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		switch {
		case errors.Is(err, identities.ErrNotFound):
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := identity.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	token, err := app.authenticator.GenerateToken(identity.ID, identity.Email)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, &TokenResponse{
		AccessToken: token,
		UserID:      identity.ID.String(),
		Email:       identity.Email,
	})
}
