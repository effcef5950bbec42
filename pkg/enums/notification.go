package enums

// NotificationType classifies in-app notifications shown on the customer dashboard.
type NotificationType string

const (
	NotificationTypeInvoice      NotificationType = "invoice"
	NotificationTypePayment      NotificationType = "payment"
	NotificationTypeSubscription NotificationType = "subscription"
	NotificationTypePlanChange   NotificationType = "plan_change"
	NotificationTypeSystem       NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeInvoice,
	NotificationTypePayment,
	NotificationTypeSubscription,
	NotificationTypePlanChange,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return oneOf(validNotificationTypes, n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parseOneOf(validNotificationTypes, value, "notification type")
}
