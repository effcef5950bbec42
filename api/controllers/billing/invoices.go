package billing

import (
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/controllers/customercontext"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const invoiceParam = "invoiceId"

// ListInvoices returns the caller's invoices, newest first, optionally filtered by ?status.
func ListInvoices(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("invoices"))
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

		var status *enums.InvoiceStatus
		if raw := validators.ParseQueryString(r, "status", 32); raw != nil {
			parsed, err := enums.ParseInvoiceStatus(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		result, err := svc.ListForCustomer(r.Context(), customerID, status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("invoices"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := validators.URLParamUUID(r, invoiceParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.GetForCustomer(r.Context(), customerID, invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// PayInvoice charges the saved payment method for a pending or overdue invoice. A declined
// charge is still a 200: the attempt status tells the client what happened.
func PayInvoice(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, customercontext.Unavailable("payments"))
			return
		}
		customerID, err := customercontext.ResolveCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := validators.URLParamUUID(r, invoiceParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attempt, err := svc.PayInvoice(r.Context(), customerID, invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempt)
	}
}
