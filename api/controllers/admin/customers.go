package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/analytics"
	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const customerParam = "customerId"

type kycRequest struct {
	KYCStatus enums.KYCStatus `json:"kyc_status" validate:"required"`
}

func ListCustomers(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("customers"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter customers.ListFilter
		if filter.KYCStatus, err = optionalEnum(r, "kyc_status", enums.ParseKYCStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if search := validators.ParseQueryString(r, "q", 120); search != nil {
			filter.Search = *search
		}
		result, err := svc.List(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetCustomer(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("customers", svc != nil, customerParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.Get(r.Context(), id)
	})
}

func UpdateCustomerKYC(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("customers"))
			return
		}
		id, err := validators.URLParamUUID(r, customerParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body kycRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customer, err := svc.UpdateKYCStatus(r.Context(), id, body.KYCStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

// CustomerInsights scores one customer's payment and churn risk.
func CustomerInsights(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("analytics", svc != nil, customerParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.CustomerInsights(r.Context(), id)
	})
}
