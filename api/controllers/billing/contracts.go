package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/controllers/customercontext"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/devicecontracts"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const contractParam = "contractId"

// QuoteDeviceContract prices an installment plan from ?price, ?down and ?count without
// persisting anything.
func QuoteDeviceContract(svc devicecontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("device contracts"))
			return
		}
		price, err := validators.ParseQueryInt64(r, "price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		down, err := validators.ParseQueryInt64(r, "down")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count, err := validators.ParseQueryInt(r, "count", 0, 0, 36)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Quote(price, down, count)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func CreateDeviceContract(svc devicecontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("device contracts"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body devicecontracts.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Create(r.Context(), customerID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

func ListDeviceContracts(svc devicecontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("device contracts"))
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
		var status *enums.DeviceContractStatus
		if raw := validators.ParseQueryString(r, "status", 32); raw != nil {
			parsed, err := enums.ParseDeviceContractStatus(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}
		result, err := svc.List(r.Context(), customerID, status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetDeviceContract(svc devicecontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return contractAction(svc, logg, func(r *http.Request, customerID, contractID uuid.UUID) (any, error) {
		return svc.Get(r.Context(), customerID, contractID)
	})
}

// PayDeviceInstallment bills the next unpaid installment.
func PayDeviceInstallment(svc devicecontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return contractAction(svc, logg, func(r *http.Request, customerID, contractID uuid.UUID) (any, error) {
		return svc.PayInstallment(r.Context(), customerID, contractID)
	})
}

func DeviceTerminationQuote(svc devicecontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return contractAction(svc, logg, func(r *http.Request, customerID, contractID uuid.UUID) (any, error) {
		return svc.TerminationQuote(r.Context(), customerID, contractID)
	})
}

// TerminateDeviceContract settles the remaining balance plus the early termination fee.
func TerminateDeviceContract(svc devicecontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return contractAction(svc, logg, func(r *http.Request, customerID, contractID uuid.UUID) (any, error) {
		return svc.Terminate(r.Context(), customerID, contractID)
	})
}

func contractAction(svc devicecontracts.Service, logg *logger.Logger, run func(*http.Request, uuid.UUID, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("device contracts"))
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
		result, err := run(r, customerID, contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
