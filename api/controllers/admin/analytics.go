package admin

import (
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/analytics"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// RevenueAnalytics reports billed, collected and outstanding revenue over ?months.
func RevenueAnalytics(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics"))
			return
		}
		months, err := validators.ParseQueryInt(r, "months", analytics.DefaultRevenueMonths, 1, analytics.MaxRevenueMonths)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Revenue(r.Context(), months)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func UserAnalytics(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics"))
			return
		}
		report, err := svc.Users(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
