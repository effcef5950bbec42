package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// Identity is the caller established by Auth.
type Identity struct {
	CustomerID uuid.UUID
	Role       enums.Role
	KYCStatus  enums.KYCStatus
	SessionID  string
}

type identityKey struct{}

// WithIdentity stores id on ctx. Tests use it to skip token minting.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller and whether one was authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// CustomerIDFromContext returns the authenticated customer, or uuid.Nil when absent.
func CustomerIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.CustomerID
}

// WithCustomerID authenticates ctx as a plain customer.
func WithCustomerID(ctx context.Context, customerID uuid.UUID) context.Context {
	return WithIdentity(ctx, Identity{CustomerID: customerID, Role: enums.RoleCustomer})
}
