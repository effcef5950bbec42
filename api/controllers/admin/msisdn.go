package admin

import (
	"mime"
	"net/http"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/controllers"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const (
	msisdnParam   = "msisdnId"
	maxBulkImport = 5000
)

type bulkImportRequest struct {
	Numbers []msisdn.CreateInput `json:"numbers" validate:"required,min=1,max=5000"`
}

func ListNumbers(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("msisdn"))
			return
		}
		filter, err := controllers.ParseNumberFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
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

func GetNumber(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return byID("msisdn", svc != nil, msisdnParam, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.AdminGet(r.Context(), id)
	})
}

func CreateNumber(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("msisdn"))
			return
		}
		var body msisdn.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		number, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, number)
	}
}

// ImportNumbers loads inventory in bulk, either as {"numbers": [...]} or as a text/csv body
// with phone_number,tier,region columns. Duplicates are skipped, not fatal.
func ImportNumbers(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("msisdn"))
			return
		}

		var inputs []msisdn.CreateInput
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "text/csv" {
			if err := gocsv.Unmarshal(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes), &inputs); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid csv"))
				return
			}
			if len(inputs) == 0 || len(inputs) > maxBulkImport {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "csv must contain between 1 and 5000 rows"))
				return
			}
		} else {
			var body bulkImportRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			inputs = body.Numbers
		}

		result, err := svc.BulkImport(r.Context(), inputs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

func UpdateNumber(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("msisdn"))
			return
		}
		id, err := validators.URLParamUUID(r, msisdnParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body msisdn.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		number, err := svc.Update(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, number)
	}
}

// DeleteNumber removes an available number. Anything else is a state conflict.
func DeleteNumber(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("msisdn"))
			return
		}
		id, err := validators.URLParamUUID(r, msisdnParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
