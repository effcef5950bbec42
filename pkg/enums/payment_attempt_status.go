package enums

// PaymentAttemptStatus is the outcome of charging an invoice.
type PaymentAttemptStatus string

const (
	PaymentAttemptPending   PaymentAttemptStatus = "pending"
	PaymentAttemptSucceeded PaymentAttemptStatus = "succeeded"
	PaymentAttemptFailed    PaymentAttemptStatus = "failed"
	PaymentAttemptExhausted PaymentAttemptStatus = "exhausted"
)

var validPaymentAttemptStatuses = []PaymentAttemptStatus{
	PaymentAttemptPending,
	PaymentAttemptSucceeded,
	PaymentAttemptFailed,
	PaymentAttemptExhausted,
}

func (s PaymentAttemptStatus) IsValid() bool {
	return oneOf(validPaymentAttemptStatuses, s)
}

// Retryable is true for attempts the retry job may still pick up.
func (s PaymentAttemptStatus) Retryable() bool {
	return s == PaymentAttemptPending || s == PaymentAttemptFailed
}

func ParsePaymentAttemptStatus(value string) (PaymentAttemptStatus, error) {
	return parseOneOf(validPaymentAttemptStatuses, value, "payment attempt status")
}
