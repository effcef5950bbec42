package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/porting"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const portingParam = "portingId"

func ListPortingRequests(svc porting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("porting"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter porting.ListFilter
		if filter.Status, err = optionalEnum(r, "status", enums.ParsePortingStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Direction, err = optionalEnum(r, "direction", enums.ParsePortingDirection); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.CustomerID, err = optionalUUID(r, "customer_id"); err != nil {
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

// ApprovePortingRequest schedules the port. An empty body uses the default lead time.
func ApprovePortingRequest(svc porting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("porting"))
			return
		}
		id, err := validators.URLParamUUID(r, portingParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body porting.ApproveInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		req, err := svc.Approve(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

func RejectPortingRequest(svc porting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("porting"))
			return
		}
		id, err := validators.URLParamUUID(r, portingParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body porting.RejectInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Reject(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

// CompletePortingRequest executes a scheduled port in or out.
func CompletePortingRequest(svc porting.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("porting", svc != nil, portingParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.Complete(r.Context(), id)
	})
}
