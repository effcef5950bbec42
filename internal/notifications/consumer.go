package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/delivery"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the notification dedupe marks and metrics.
const ConsumerName = "customer-notifications"

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// EventHandler turns billing and subscription events into in-app notifications.
type EventHandler struct {
	repo creator
}

func NewEventHandler(repo creator) (*EventHandler, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &EventHandler{repo: repo}, nil
}

// Accepts reports whether eventType produces a notification.
func Accepts(eventType enums.OutboxEventType) bool {
	return notifiable(eventType)
}

func (h *EventHandler) Handle(ctx context.Context, msg *delivery.Message) error {
	if !notifiable(msg.EventType) {
		return delivery.ErrSkip
	}
	notification, err := buildNotification(msg.EventType, msg.Data)
	if err != nil {
		return delivery.Permanent(fmt.Errorf("parse %s payload: %w", msg.EventType, err))
	}
	if notification == nil {
		return delivery.ErrSkip
	}
	if err := h.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("insert notification for %s: %w", notification.CustomerID, err)
	}
	return nil
}

func notifiable(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventInvoiceCreated,
		enums.EventPlanChanged,
		enums.EventPaymentFailed,
		enums.EventSubscriptionSuspended,
		enums.EventSubscriptionReactivated:
		return true
	}
	return false
}

// buildNotification returns nil when the event carries nothing worth showing.
func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventInvoiceCreated:
		var event payloads.InvoiceCreatedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		return &models.Notification{
			CustomerID: event.CustomerID,
			Type:       enums.NotificationTypeInvoice,
			Title:      "New invoice " + event.InvoiceNumber,
			Message: fmt.Sprintf("Invoice %s for %s is due on %s.",
				event.InvoiceNumber, formatMinor(event.TotalMinor), event.DueDate.Format("02 Jan 2006")),
			Link: stringPtr("/invoices/" + event.InvoiceID.String()),
		}, nil

	case enums.EventPlanChanged:
		var event payloads.PlanChangedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("Your plan is now %s.", event.NewPlanName)
		switch {
		case event.NetMinor > 0:
			message += fmt.Sprintf(" %s was charged for the remaining %d days.", formatMinor(event.NetMinor), event.DaysRemaining)
		case event.NetMinor < 0:
			message += fmt.Sprintf(" %s was credited for the remaining %d days.", formatMinor(-event.NetMinor), event.DaysRemaining)
		}
		return &models.Notification{
			CustomerID: event.CustomerID,
			Type:       enums.NotificationTypePlanChange,
			Title:      "Plan changed",
			Message:    message,
			Link:       stringPtr("/subscriptions/" + event.SubscriptionID.String()),
		}, nil

	case enums.EventPaymentFailed:
		var event payloads.PaymentFailedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("We could not collect %s: %s.", formatMinor(event.AmountMinor), event.Reason)
		if event.Exhausted {
			message += " No further retries will be made. Please update your payment method."
		} else if event.NextRetryAt != nil {
			message += fmt.Sprintf(" We will retry on %s.", event.NextRetryAt.Format("02 Jan 2006 15:04 MST"))
		}
		return &models.Notification{
			CustomerID: event.CustomerID,
			Type:       enums.NotificationTypePayment,
			Title:      "Payment failed",
			Message:    message,
			Link:       stringPtr("/invoices/" + event.InvoiceID.String()),
		}, nil

	case enums.EventSubscriptionSuspended, enums.EventSubscriptionReactivated:
		var event payloads.SubscriptionStatusEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		title := "Line reactivated"
		message := fmt.Sprintf("Service on %s has been restored.", event.PhoneNumber)
		if eventType == enums.EventSubscriptionSuspended {
			title = "Line suspended"
			message = fmt.Sprintf("Service on %s is suspended.", event.PhoneNumber)
			if event.Reason != "" {
				message = fmt.Sprintf("Service on %s is suspended. Reason: %s", event.PhoneNumber, event.Reason)
			}
		}
		return &models.Notification{
			CustomerID: event.CustomerID,
			Type:       enums.NotificationTypeSubscription,
			Title:      title,
			Message:    message,
			Link:       stringPtr("/subscriptions/" + event.SubscriptionID.String()),
		}, nil
	}
	return nil, nil
}

func formatMinor(minor int64) string {
	return "INR " + decimal.New(minor, -2).StringFixed(2)
}

func stringPtr(value string) *string {
	return &value
}
