package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// AccessTokenPayload is what the auth service knows about a customer at sign-in.
type AccessTokenPayload struct {
	CustomerID uuid.UUID
	Role       enums.Role
	KYCStatus  *enums.KYCStatus
	// JTI ties the token to its Redis session entry. Generated when blank.
	JTI string
}

func (p AccessTokenPayload) validate() error {
	if p.CustomerID == uuid.Nil {
		return errors.New("customer id is required")
	}
	if !p.Role.IsValid() {
		return fmt.Errorf("invalid role %q", p.Role)
	}
	if p.KYCStatus != nil && !p.KYCStatus.IsValid() {
		return fmt.Errorf("invalid kyc status %q", *p.KYCStatus)
	}
	return nil
}

type AccessTokenClaims struct {
	CustomerID uuid.UUID        `json:"customer_id"`
	Role       enums.Role       `json:"role"`
	KYCStatus  *enums.KYCStatus `json:"kyc_status,omitempty"`
	jwt.RegisteredClaims
}
