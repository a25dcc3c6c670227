package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"academy/internal/domain/identities"
	"academy/internal/provisioning"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter.String())
}

// provisioningStatus maps a provisioning failure to its HTTP status.
// IdentityCreationFailed is a client error because the usual cause is an
// email that is already registered; IdentityDeletionFailed is one when the
// target account does not exist.
func provisioningStatus(perr *provisioning.Error) int {
	switch perr.Kind {
	case provisioning.KindUnauthenticated:
		return http.StatusUnauthorized
	case provisioning.KindForbidden:
		return http.StatusForbidden
	case provisioning.KindInvalidArgument,
		provisioning.KindSelfDeletionForbidden,
		provisioning.KindIdentityCreationFailed:
		return http.StatusBadRequest
	case provisioning.KindIdentityDeletionFailed:
		if errors.Is(perr, identities.ErrNotFound) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case provisioning.KindIdentityLookupFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// provisioningErrorResponse writes the failure envelope used by the
// /functions endpoints. It names the failure kind so the admin UI can react
// to it, and never leaks the wrapped cause.
func (app *application) provisioningErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	type envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}

	var perr *provisioning.Error
	if !errors.As(err, &perr) {
		app.internalServerError(w, r, err)
		return
	}

	status := provisioningStatus(perr)
	if status >= http.StatusInternalServerError {
		app.logger.Errorw("provisioning failed", "method", r.Method, "path", r.URL.Path, "kind", perr.Kind, "error", err.Error())
	} else {
		app.logger.Warnw("provisioning rejected", "method", r.Method, "path", r.URL.Path, "kind", perr.Kind, "error", err.Error())
	}

	writeJSON(w, status, &envelope{
		Success: false,
		Error:   string(perr.Kind),
		Message: perr.Message,
		Status:  status,
	})
}
