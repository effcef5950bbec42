package subscriptions

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/usage"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// RecordUsage ingests a usage sample and deducts it from the balances.
func RecordUsage(svc usage.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		var body usage.RecordInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Record(r.Context(), req.customerID, req.subscriptionID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	})
}

func GetUsage(svc usage.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		result, err := svc.Get(r.Context(), req.customerID, req.subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	})
}

// ExportUsage streams the monthly usage history as CSV (default) or JSON. The export is
// buffered so a failure still produces a JSON error envelope.
func ExportUsage(svc usage.Service, logg *logger.Logger) http.HandlerFunc {
	return withSubscription(svc, logg, func(w http.ResponseWriter, r *http.Request, req subscriptionRequest) {
		format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = usage.FormatCSV
		}

		var buf bytes.Buffer
		if err := svc.Export(r.Context(), req.customerID, req.subscriptionID, format, &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contentType := "text/csv"
		if format == usage.FormatJSON {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="usage-%s.%s"`, req.subscriptionID, format))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	})
}
