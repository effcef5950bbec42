package billing

import (
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/controllers/customercontext"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/insurance"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const policyParam = "policyId"

// PurchaseInsurance attaches a policy to one of the caller's device contracts.
func PurchaseInsurance(svc insurance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("insurance"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := validators.URLParamUUID(r, contractParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body insurance.PurchaseInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Purchase(r.Context(), customerID, contractID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

func ListInsurancePolicies(svc insurance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("insurance"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		policies, err := svc.List(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policies)
	}
}

func ClaimInsurance(svc insurance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("insurance"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		policyID, err := validators.URLParamUUID(r, policyParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body insurance.ClaimInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Claim(r.Context(), customerID, policyID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

func CancelInsurance(svc insurance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("insurance"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		policyID, err := validators.URLParamUUID(r, policyParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		policy, err := svc.Cancel(r.Context(), customerID, policyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policy)
	}
}
