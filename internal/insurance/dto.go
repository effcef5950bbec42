package insurance

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type PolicyDTO struct {
	ID                  uuid.UUID             `json:"id"`
	DeviceContractID    uuid.UUID             `json:"device_contract_id"`
	CoverageTier        enums.CoverageTier    `json:"coverage_tier"`
	MonthlyPremiumMinor int64                 `json:"monthly_premium_minor"`
	CoverageAmountMinor int64                 `json:"coverage_amount_minor"`
	Status              enums.InsuranceStatus `json:"status"`
	ClaimsCount         int                   `json:"claims_count"`
	ClaimsRemaining     int                   `json:"claims_remaining"`
	StartsAt            time.Time             `json:"starts_at"`
	ExpiresAt           time.Time             `json:"expires_at"`
	ClaimedAt           *time.Time            `json:"claimed_at,omitempty"`
	CancelledAt         *time.Time            `json:"cancelled_at,omitempty"`
}

func FromModel(m *models.DeviceInsurance) *PolicyDTO {
	if m == nil {
		return nil
	}
	remaining := billing.MaxClaims(m.CoverageTier) - m.ClaimsCount
	if remaining < 0 || m.Status != enums.InsuranceActive {
		remaining = 0
	}
	return &PolicyDTO{
		ID:                  m.ID,
		DeviceContractID:    m.DeviceContractID,
		CoverageTier:        m.CoverageTier,
		MonthlyPremiumMinor: m.MonthlyPremiumMinor,
		CoverageAmountMinor: m.CoverageAmountMinor,
		Status:              m.Status,
		ClaimsCount:         m.ClaimsCount,
		ClaimsRemaining:     remaining,
		StartsAt:            m.StartsAt,
		ExpiresAt:           m.ExpiresAt,
		ClaimedAt:           m.ClaimedAt,
		CancelledAt:         m.CancelledAt,
	}
}

type PurchaseInput struct {
	CoverageTier enums.CoverageTier `json:"coverage_tier" validate:"required,oneof=basic premium"`
}

type ClaimInput struct {
	Description string `json:"description" validate:"required,max=1000"`
}

type PurchaseResult struct {
	Policy  *PolicyDTO           `json:"policy"`
	Invoice *invoices.InvoiceDTO `json:"invoice,omitempty"`
	Payment *payments.AttemptDTO `json:"payment,omitempty"`
}

// ClaimResult reports an accepted claim and the payout cap that applies to it.
type ClaimResult struct {
	Policy      *PolicyDTO `json:"policy"`
	PayoutMinor int64      `json:"payout_minor"`
}
