package enums

// MsisdnStatus is the lifecycle state of a phone number in inventory.
type MsisdnStatus string

const (
	MsisdnStatusAvailable   MsisdnStatus = "available"
	MsisdnStatusReserved    MsisdnStatus = "reserved"
	MsisdnStatusActive      MsisdnStatus = "active"
	MsisdnStatusCoolingDown MsisdnStatus = "cooling_down"
)

var validMsisdnStatuses = []MsisdnStatus{
	MsisdnStatusAvailable,
	MsisdnStatusReserved,
	MsisdnStatusActive,
	MsisdnStatusCoolingDown,
}

func (s MsisdnStatus) String() string { return string(s) }

func (s MsisdnStatus) IsValid() bool {
	return oneOf(validMsisdnStatuses, s)
}

func ParseMsisdnStatus(value string) (MsisdnStatus, error) {
	return parseOneOf(validMsisdnStatuses, value, "msisdn status")
}

// MsisdnTier prices vanity numbers above standard ones.
type MsisdnTier string

const (
	MsisdnTierStandard MsisdnTier = "standard"
	MsisdnTierGold     MsisdnTier = "gold"
	MsisdnTierPlatinum MsisdnTier = "platinum"
)

var validMsisdnTiers = []MsisdnTier{MsisdnTierStandard, MsisdnTierGold, MsisdnTierPlatinum}

func (t MsisdnTier) IsValid() bool {
	return oneOf(validMsisdnTiers, t)
}

func ParseMsisdnTier(value string) (MsisdnTier, error) {
	return parseOneOf(validMsisdnTiers, value, "msisdn tier")
}
