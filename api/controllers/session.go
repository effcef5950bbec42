package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/middleware"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	pkgAuth "github.com/angelmondragon/telcobill-backend/pkg/auth"
	"github.com/angelmondragon/telcobill-backend/pkg/auth/session"
	"github.com/angelmondragon/telcobill-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

type sessionTokenRotator interface {
	Rotate(ctx context.Context, oldAccessID string, customerID uuid.UUID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthLogout revokes the session behind the presented access token. Expired
// tokens are accepted so a client can always sign out.
func AuthLogout(sessions sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	if sessions == nil {
		return unavailable("sessions", logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := sessionClaims(r, cfg)
		if err == nil {
			err = sessions.Revoke(r.Context(), claims.ID)
			err = pkgerrors.Ensure(err, pkgerrors.CodeDependency, "revoke session")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthRefresh trades a refresh token for a new token pair. The old refresh
// token stops working whether or not the response reaches the client.
func AuthRefresh(sessions sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	if sessions == nil {
		return unavailable("sessions", logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		pair, err := refresh(r, sessions, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(TokenHeader, pair.AccessToken)
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, pair)
	}
}

func refresh(r *http.Request, sessions sessionTokenRotator, cfg config.JWTConfig) (*refreshResponse, error) {
	var body refreshRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return nil, err
	}
	claims, err := sessionClaims(r, cfg)
	if err != nil {
		return nil, err
	}

	accessID, refreshToken, err := sessions.Rotate(r.Context(), claims.ID, claims.CustomerID, body.RefreshToken)
	switch {
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	access, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		CustomerID: claims.CustomerID,
		Role:       claims.Role,
		KYCStatus:  claims.KYCStatus,
		JTI:        accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &refreshResponse{AccessToken: access, RefreshToken: refreshToken}, nil
}

// sessionClaims reads the bearer token without enforcing expiry.
func sessionClaims(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}
