package subscriptions

import (
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/controllers/customercontext"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	subsvc "github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

type autoRenewRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// List returns the caller's subscriptions with their current balances.
func List(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("subscriptions"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), customerID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Detail(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		sub, err := svc.Get(r.Context(), req.customerID, req.subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	})
}

// Recharge renews the current plan: a new invoice is raised and balances reset to quota.
func Recharge(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		result, err := svc.Recharge(r.Context(), req.customerID, req.subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	})
}

func TopUp(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		var body subsvc.TopUpInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.TopUp(r.Context(), req.customerID, req.subscriptionID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	})
}

// PreviewPlanChange prices a plan change without applying it.
func PreviewPlanChange(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		var body subsvc.PlanChangeInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.PreviewPlanChange(r.Context(), req.customerID, req.subscriptionID, body.NewPlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	})
}

func ChangePlan(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		var body subsvc.PlanChangeInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ChangePlan(r.Context(), req.customerID, req.subscriptionID, body.NewPlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	})
}

func Cancel(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		sub, err := svc.Cancel(r.Context(), req.customerID, req.subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	})
}

func SetAutoRenew(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		var body autoRenewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.SetAutoRenew(r.Context(), req.customerID, req.subscriptionID, *body.Enabled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	})
}
