package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/auth"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// TokenHeader mirrors the access token for self-care apps that read headers only.
const TokenHeader = "X-TB-Token"

type loginFunc func(context.Context, auth.LoginRequest) (*auth.LoginResponse, error)

// AuthLogin signs a subscriber in.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("auth", logg)
	}
	return signIn(svc.Login, logg)
}

// AdminAuthLogin signs in back-office staff. Customer accounts are refused by the service.
func AdminAuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("auth", logg)
	}
	return signIn(svc.AdminLogin, logg)
}

func signIn(login loginFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, http.StatusOK, result)
	}
}

func writeSession(w http.ResponseWriter, status int, result *auth.LoginResponse) {
	w.Header().Set(TokenHeader, result.AccessToken)
	w.Header().Set("Cache-Control", "no-store")
	responses.WriteSuccessStatus(w, status, result)
}

func unavailable(service string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, serviceUnavailable(service))
	}
}
