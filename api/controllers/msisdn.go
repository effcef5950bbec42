package controllers

import (
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const (
	maxRegionLen  = 64
	maxPatternLen = 15
)

// ParseNumberFilter reads the region/tier/pattern/status filters shared by the
// storefront browse and the admin inventory list.
func ParseNumberFilter(r *http.Request) (msisdn.ListFilter, error) {
	var filter msisdn.ListFilter
	if region := validators.ParseQueryString(r, "region", maxRegionLen); region != nil {
		filter.Region = *region
	}
	if pattern := validators.ParseQueryString(r, "pattern", maxPatternLen); pattern != nil {
		filter.Pattern = *pattern
	}
	if raw := validators.ParseQueryString(r, "tier", 16); raw != nil {
		tier, err := enums.ParseMsisdnTier(*raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier")
		}
		filter.Tier = &tier
	}
	if raw := validators.ParseQueryString(r, "status", 16); raw != nil {
		status, err := enums.ParseMsisdnStatus(*raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filter.Status = &status
	}
	return filter, nil
}

// BrowseNumbers lists numbers that can be reserved right now.
func BrowseNumbers(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("msisdn"))
			return
		}
		filter, err := ParseNumberFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BrowseAvailable(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ReserveNumber holds a number for the caller for the reservation TTL.
func ReserveNumber(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("msisdn"))
			return
		}
		customerID, err := customerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		numberID, err := validators.URLParamUUID(r, "msisdnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		number, err := svc.Reserve(r.Context(), customerID, numberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, number)
	}
}

// ReleaseNumber drops the caller's reservation early.
func ReleaseNumber(svc msisdn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("msisdn"))
			return
		}
		customerID, err := customerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		numberID, err := validators.URLParamUUID(r, "msisdnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ReleaseReservation(r.Context(), customerID, numberID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
