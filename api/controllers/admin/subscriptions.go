package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

type reasonRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func ListSubscriptions(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("subscriptions"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter subscriptions.ListFilter
		if filter.Status, err = optionalEnum(r, "status", enums.ParseSubscriptionStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.CustomerID, err = optionalUUID(r, "customer_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.PlanID, err = optionalUUID(r, "plan_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AdminList(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SuspendSubscription blocks usage on an active line. The reason lands in the status history.
func SuspendSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionTransition(svc, logg, func(ctx context.Context, id uuid.UUID, reason string) (*subscriptions.SubscriptionDTO, error) {
		return svc.Suspend(ctx, id, reason)
	})
}

func ReactivateSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionTransition(svc, logg, func(ctx context.Context, id uuid.UUID, reason string) (*subscriptions.SubscriptionDTO, error) {
		return svc.Reactivate(ctx, id, reason)
	})
}

type transitionFunc func(ctx context.Context, id uuid.UUID, reason string) (*subscriptions.SubscriptionDTO, error)

func subscriptionTransition(svc subscriptions.Service, logg *logger.Logger, apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("subscriptions"))
			return
		}
		id, err := validators.URLParamUUID(r, subscriptionParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body reasonRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		sub, err := apply(r.Context(), id, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}
