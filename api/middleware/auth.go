package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	pkgAuth "github.com/angelmondragon/telcobill-backend/pkg/auth"
	"github.com/angelmondragon/telcobill-backend/pkg/auth/session"
	"github.com/angelmondragon/telcobill-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

var errNoCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")

// BearerToken extracts the raw JWT from the Authorization header. The scheme
// is optional.
func BearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		raw = strings.TrimSpace(rest)
	}
	if raw == "" || strings.EqualFold(raw, "bearer") {
		return "", errNoCredentials
	}
	return raw, nil
}

// Auth validates the access token and attaches its Identity to the request.
// Tokens whose refresh session was revoked are refused before they expire.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, id.CustomerID.String())
				ctx = logg.WithActorRole(ctx, string(id.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (Identity, error) {
	token, err := BearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if sessions != nil {
		live, err := sessions.HasSession(r.Context(), claims.ID)
		if err != nil {
			return Identity{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !live {
			return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}

	id := Identity{CustomerID: claims.CustomerID, Role: claims.Role, SessionID: claims.ID}
	if claims.KYCStatus != nil {
		id.KYCStatus = *claims.KYCStatus
	}
	return id, nil
}
