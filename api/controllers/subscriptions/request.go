package subscriptions

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/controllers/customercontext"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// SubscriptionParam is the chi route parameter naming the subscription.
const SubscriptionParam = "subscriptionId"

type subscriptionRequest struct {
	customerID     uuid.UUID
	subscriptionID uuid.UUID
}

// withSubscription resolves the caller and the subscription path parameter before
// handing off. svc is only checked for presence.
func withSubscription[S any](svc S, logg *logger.Logger, next func(http.ResponseWriter, *http.Request, subscriptionRequest)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if any(svc) == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("subscriptions"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subscriptionID, err := validators.URLParamUUID(r, SubscriptionParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next(w, r, subscriptionRequest{customerID: customerID, subscriptionID: subscriptionID})
	}
}
