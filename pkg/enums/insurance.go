package enums

// CoverageTier selects the premium and payout schedule of device insurance.
type CoverageTier string

const (
	CoverageTierBasic   CoverageTier = "basic"
	CoverageTierPremium CoverageTier = "premium"
)

var validCoverageTiers = []CoverageTier{CoverageTierBasic, CoverageTierPremium}

func (c CoverageTier) IsValid() bool {
	return oneOf(validCoverageTiers, c)
}

func ParseCoverageTier(value string) (CoverageTier, error) {
	return parseOneOf(validCoverageTiers, value, "coverage tier")
}

type InsuranceStatus string

const (
	InsuranceActive    InsuranceStatus = "active"
	InsuranceClaimed   InsuranceStatus = "claimed"
	InsuranceCancelled InsuranceStatus = "cancelled"
)

func (s InsuranceStatus) IsValid() bool {
	return oneOf([]InsuranceStatus{InsuranceActive, InsuranceClaimed, InsuranceCancelled}, s)
}
