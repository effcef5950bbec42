package subscriptions

import (
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/roaming"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// ActivateRoaming buys a roaming package for the subscription.
func ActivateRoaming(svc roaming.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		var body roaming.ActivateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Activate(r.Context(), req.customerID, req.subscriptionID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	})
}

func ListRoaming(svc roaming.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		result, err := svc.ListActivations(r.Context(), req.customerID, req.subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": result})
	})
}
