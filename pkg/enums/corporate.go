package enums

type CorporateAccountStatus string

const (
	CorporateAccountActive    CorporateAccountStatus = "active"
	CorporateAccountSuspended CorporateAccountStatus = "suspended"
	CorporateAccountClosed    CorporateAccountStatus = "closed"
)

var validCorporateAccountStatuses = []CorporateAccountStatus{
	CorporateAccountActive,
	CorporateAccountSuspended,
	CorporateAccountClosed,
}

func (s CorporateAccountStatus) IsValid() bool {
	return oneOf(validCorporateAccountStatuses, s)
}

func ParseCorporateAccountStatus(value string) (CorporateAccountStatus, error) {
	return parseOneOf(validCorporateAccountStatuses, value, "corporate account status")
}
