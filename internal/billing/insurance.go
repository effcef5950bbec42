package billing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

// InsuranceTermMonths is the fixed coverage period of a policy.
const InsuranceTermMonths = 12

type coverageTerms struct {
	premiumRate  decimal.Decimal
	coverageRate decimal.Decimal
	maxClaims    int
}

var coverageByTier = map[enums.CoverageTier]coverageTerms{
	enums.CoverageTierBasic: {
		premiumRate:  decimal.RequireFromString("0.015"),
		coverageRate: decimal.RequireFromString("0.70"),
		maxClaims:    1,
	},
	enums.CoverageTierPremium: {
		premiumRate:  decimal.RequireFromString("0.025"),
		coverageRate: decimal.RequireFromString("1.00"),
		maxClaims:    2,
	},
}

// InsuranceQuote prices a policy for a device.
type InsuranceQuote struct {
	Tier                enums.CoverageTier `json:"tier"`
	MonthlyPremiumMinor int64              `json:"monthly_premium_minor"`
	CoverageAmountMinor int64              `json:"coverage_amount_minor"`
	MaxClaims           int                `json:"max_claims"`
}

// QuoteInsurance derives the monthly premium and payout cap from the device price.
func QuoteInsurance(tier enums.CoverageTier, devicePrice int64) (InsuranceQuote, error) {
	terms, ok := coverageByTier[tier]
	if !ok {
		return InsuranceQuote{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown coverage tier %q", tier)
	}
	if devicePrice <= 0 {
		return InsuranceQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "device price must be positive")
	}
	price := decimal.NewFromInt(devicePrice)
	return InsuranceQuote{
		Tier:                tier,
		MonthlyPremiumMinor: roundMinor(price.Mul(terms.premiumRate)),
		CoverageAmountMinor: roundMinor(price.Mul(terms.coverageRate)),
		MaxClaims:           terms.maxClaims,
	}, nil
}

// MaxClaims returns how many claims a tier allows over the term.
func MaxClaims(tier enums.CoverageTier) int {
	return coverageByTier[tier].maxClaims
}
