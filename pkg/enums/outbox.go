package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregateSubscription   OutboxAggregateType = "subscription"
	AggregateInvoice        OutboxAggregateType = "invoice"
	AggregatePaymentAttempt OutboxAggregateType = "payment_attempt"
	AggregateDeviceContract OutboxAggregateType = "device_contract"
	AggregateMsisdn         OutboxAggregateType = "msisdn"
	AggregatePorting        OutboxAggregateType = "porting_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSubscription,
	AggregateInvoice,
	AggregatePaymentAttempt,
	AggregateDeviceContract,
	AggregateMsisdn,
	AggregatePorting,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return oneOf(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType is the event_type attribute carried on every published message.
type OutboxEventType string

const (
	EventOrderPlaced             OutboxEventType = "order_placed"
	EventPlanChanged             OutboxEventType = "plan_changed"
	EventInvoiceCreated          OutboxEventType = "invoice_created"
	EventContractCreated         OutboxEventType = "contract_created"
	EventSubscriptionSuspended   OutboxEventType = "subscription_suspended"
	EventSubscriptionReactivated OutboxEventType = "subscription_reactivated"
	EventPaymentSettled          OutboxEventType = "payment_settled"
	EventPaymentFailed           OutboxEventType = "payment_failed"
	EventReservationReleased     OutboxEventType = "reservation_released"
	EventPortingCompleted        OutboxEventType = "porting_completed"
)

var validEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventPlanChanged,
	EventInvoiceCreated,
	EventContractCreated,
	EventSubscriptionSuspended,
	EventSubscriptionReactivated,
	EventPaymentSettled,
	EventPaymentFailed,
	EventReservationReleased,
	EventPortingCompleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return oneOf(validEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf(validEventTypes, value, "event type")
}
