package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/roaming"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// ListRoamingPackages serves active packages, optionally narrowed to one ISO country code.
func ListRoamingPackages(svc roaming.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("roaming"))
			return
		}
		country := ""
		if raw := validators.ParseQueryString(r, "country", 2); raw != nil {
			country = strings.ToUpper(*raw)
		}
		result, err := svc.ListPackages(r.Context(), country)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": result})
	}
}
