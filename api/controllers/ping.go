package controllers

import (
	"net/http"

	"github.com/angelmondragon/telcobill-backend/api/middleware"
	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type pingResponse struct {
	Scope      string     `json:"scope"`
	Status     string     `json:"status"`
	CustomerID string     `json:"customer_id,omitempty"`
	Role       enums.Role `json:"role,omitempty"`
}

// Ping answers for a route group so clients can check their credentials reach
// it. Authenticated groups echo the caller back.
func Ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := pingResponse{Scope: scope, Status: "ok"}
		if id, ok := middleware.IdentityFromContext(r.Context()); ok {
			body.CustomerID = id.CustomerID.String()
			body.Role = id.Role
		}
		responses.WriteSuccess(w, body)
	}
}
