package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}

// byID resolves a UUID path parameter and writes whatever run returns as a 200.
func byID(name string, ready bool, param string, logg *logger.Logger, run func(*http.Request, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready {
			responses.WriteError(r.Context(), logg, w, unavailable(name))
			return
		}
		id, err := validators.URLParamUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := run(r, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func optionalUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := validators.ParseQueryString(r, key, 36)
	if raw == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid uuid").WithDetails(map[string]any{"field": key})
	}
	return &id, nil
}

// optionalEnum parses ?key through parse when present.
func optionalEnum[T any](r *http.Request, key string, parse func(string) (T, error)) (*T, error) {
	raw := validators.ParseQueryString(r, key, 32)
	if raw == nil {
		return nil, nil
	}
	value, err := parse(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return &value, nil
}
