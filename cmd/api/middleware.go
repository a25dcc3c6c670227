package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"academy/internal/domain/identities"
	"academy/internal/provisioning"
)

type identityKey string

const identityCtx identityKey = "identity"

func (app *application) BasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// read the auth header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
				return
			}

			// parse it -> get the base64
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Basic" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				app.unauthorizedBasicErrorResponse(w, r, err)
				return
			}

			username := app.config.Auth.Basic.User
			pass := app.config.Auth.Basic.Pass

			creds := strings.SplitN(string(decoded), ":", 2)
			if pass == "" || len(creds) != 2 ||
				subtle.ConstantTimeCompare([]byte(creds[0]), []byte(username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(creds[1]), []byte(pass)) != 1 {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken returns the token from the Authorization header, or "" when
// the header is absent.
func bearerToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return ""
	}
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return authHeader
}

// AuthTokenMiddleware resolves the bearer token to a live identity and stores
// it in the request context.
func (app *application) AuthTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
			return
		}

		identity, err := app.provisioner.Caller(r.Context(), token)
		if err != nil {
			if errors.Is(err, provisioning.ErrIdentityLookupFailed) {
				app.internalServerError(w, r, err)
				return
			}
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityCtx, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin lets through callers holding any admin role.
func (app *application) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := getIdentityFromContext(r)
		if identity == nil {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("no identity in context"))
			return
		}

		ok, err := app.authz.IsAdmin(r.Context(), identity.ID)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if !ok {
			app.forbiddenResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *application) RateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.config.RateLimiter.Enabled {
			if allow, retryAfter := app.rateLimiter.Allow(clientIP(r)); !allow {
				app.rateLimitExceededResponse(w, r, retryAfter)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. middleware.RealIP has already
// replaced it with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func getIdentityFromContext(r *http.Request) *identities.Identity {
	if identity, ok := r.Context().Value(identityCtx).(*identities.Identity); ok {
		return identity
	}
	return nil
}
