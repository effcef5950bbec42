package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/corporate"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const (
	accountParam      = "accountId"
	subscriptionParam = "subscriptionId"
)

func CreateCorporateAccount(svc corporate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("corporate"))
			return
		}
		var body corporate.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, account)
	}
}

func ListCorporateAccounts(svc corporate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("corporate"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := optionalEnum(r, "status", enums.ParseCorporateAccountStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetCorporateAccount(svc corporate.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("corporate", svc != nil, accountParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.Get(r.Context(), id)
	})
}

func UpdateCorporateAccount(svc corporate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("corporate"))
			return
		}
		id, err := validators.URLParamUUID(r, accountParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body corporate.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.Update(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

func AddCorporateLine(svc corporate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("corporate"))
			return
		}
		id, err := validators.URLParamUUID(r, accountParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body corporate.AddLineInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.AddSubscription(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

func RemoveCorporateLine(svc corporate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("corporate"))
			return
		}
		id, err := validators.URLParamUUID(r, accountParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subscriptionID, err := validators.URLParamUUID(r, subscriptionParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.RemoveSubscription(r.Context(), id, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

// GenerateCorporateInvoice bills every active line on the account with its volume discount.
func GenerateCorporateInvoice(svc corporate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("corporate"))
			return
		}
		id, err := validators.URLParamUUID(r, accountParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.GenerateInvoice(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, invoice)
	}
}
