package enums

// OutboxDLQErrorReason records why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts means every retry failed with a transient error.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable covers unknown event types, bad envelopes and missing topics.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var deadLetterReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return oneOf(deadLetterReasons, r)
}

// ParseOutboxDLQErrorReason converts a ?reason filter into OutboxDLQErrorReason.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parseOneOf(deadLetterReasons, value, "dead letter reason")
}
