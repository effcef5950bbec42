package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const invoiceParam = "invoiceId"

func ListInvoices(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("invoices"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter invoices.ListFilter
		if filter.Status, err = optionalEnum(r, "status", enums.ParseInvoiceStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.CustomerID, err = optionalUUID(r, "customer_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.SubscriptionID, err = optionalUUID(r, "subscription_id"); err != nil {
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

func GetInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("invoices", svc != nil, invoiceParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.AdminGet(r.Context(), id)
	})
}

func CancelInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("invoices", svc != nil, invoiceParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.Cancel(r.Context(), id)
	})
}

// MarkInvoicePaid records an out-of-band settlement such as a bank transfer.
func MarkInvoicePaid(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("invoices", svc != nil, invoiceParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.MarkPaid(r.Context(), id)
	})
}

func ListPaymentAttempts(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("payments"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter payments.ListFilter
		if filter.Status, err = optionalEnum(r, "status", enums.ParsePaymentAttemptStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.CustomerID, err = optionalUUID(r, "customer_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.InvoiceID, err = optionalUUID(r, "invoice_id"); err != nil {
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
