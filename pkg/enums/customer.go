package enums

// KYCStatus is the identity verification state of a customer.
type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusVerified KYCStatus = "verified"
	KYCStatusRejected KYCStatus = "rejected"
)

var validKYCStatuses = []KYCStatus{KYCStatusPending, KYCStatusVerified, KYCStatusRejected}

func (k KYCStatus) IsValid() bool {
	return oneOf(validKYCStatuses, k)
}

func ParseKYCStatus(value string) (KYCStatus, error) {
	return parseOneOf(validKYCStatuses, value, "kyc status")
}

// Role is the actor role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{RoleCustomer, RoleAdmin}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	return oneOf(validRoles, r)
}

func ParseRole(value string) (Role, error) {
	return parseOneOf(validRoles, value, "role")
}
