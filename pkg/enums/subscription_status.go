package enums

// SubscriptionStatus is the lifecycle state of a customer's line.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusActive,
	SubscriptionStatusSuspended,
	SubscriptionStatusExpired,
	SubscriptionStatusCancelled,
}

var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusPending:   {SubscriptionStatusActive, SubscriptionStatusCancelled},
	SubscriptionStatusActive:    {SubscriptionStatusSuspended, SubscriptionStatusExpired, SubscriptionStatusCancelled},
	SubscriptionStatusSuspended: {SubscriptionStatusActive, SubscriptionStatusCancelled},
	SubscriptionStatusExpired:   {SubscriptionStatusActive, SubscriptionStatusCancelled},
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	return oneOf(validSubscriptionStatuses, s)
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	return oneOf(subscriptionTransitions[s], next)
}

// IsTerminal is true for states no operation can leave.
func (s SubscriptionStatus) IsTerminal() bool {
	return len(subscriptionTransitions[s]) == 0
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parseOneOf(validSubscriptionStatuses, value, "subscription status")
}
