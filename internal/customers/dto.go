package customers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// CustomerDTO is the API view of a profile. The password hash never leaves the service.
type CustomerDTO struct {
	ID                 uuid.UUID       `json:"id"`
	Email              string          `json:"email"`
	FirstName          string          `json:"first_name"`
	LastName           string          `json:"last_name"`
	Phone              *string         `json:"phone,omitempty"`
	KYCStatus          enums.KYCStatus `json:"kyc_status"`
	SystemRole         *string         `json:"system_role,omitempty"`
	CreditBalanceMinor int64           `json:"credit_balance_minor"`
	HasPaymentMethod   bool            `json:"has_payment_method"`
	IsActive           bool            `json:"is_active"`
	LastLoginAt        *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// FromModel maps a stored profile to its DTO.
func FromModel(m *models.CustomerProfile) *CustomerDTO {
	if m == nil {
		return nil
	}
	return &CustomerDTO{
		ID:                 m.ID,
		Email:              m.Email,
		FirstName:          m.FirstName,
		LastName:           m.LastName,
		Phone:              m.Phone,
		KYCStatus:          m.KYCStatus,
		SystemRole:         m.SystemRole,
		CreditBalanceMinor: m.CreditBalanceMinor,
		HasPaymentMethod:   m.StripeCustomerID != nil && m.DefaultPaymentMethodID != nil,
		IsActive:           m.IsActive,
		LastLoginAt:        m.LastLoginAt,
		CreatedAt:          m.CreatedAt,
	}
}
