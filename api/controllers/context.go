package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/controllers/customercontext"
)

func customerFromRequest(r *http.Request) (uuid.UUID, error) {
	return customercontext.ResolveCustomerID(r)
}

func serviceUnavailable(name string) error {
	return customercontext.Unavailable(name)
}
