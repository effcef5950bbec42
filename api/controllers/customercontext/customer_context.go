package customercontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

// ResolveCustomerID returns the authenticated customer or an unauthorized error.
func ResolveCustomerID(r *http.Request) (uuid.UUID, error) {
	customerID := middleware.CustomerIDFromContext(r.Context())
	if customerID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}
	return customerID, nil
}

// Unavailable is returned when a handler was wired without its service.
func Unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
