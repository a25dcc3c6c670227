package main

import (
	"context"
	"net/http"
	"time"
)

// adminOverviewHandler godoc
//
//	@Summary		Admin overview totals
//	@Description	Registration counts by status, revenue, review totals and the number of admins.
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	admindashboard.Overview
//	@Failure		401	{object}	error
//	@Failure		403	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/overview [get]
func (app *application) adminOverviewHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	out, err := app.store.AdminDashboard.GetOverview(ctx)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	_ = app.jsonResponse(w, http.StatusOK, out)
}
