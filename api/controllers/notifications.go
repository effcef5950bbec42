package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/api/validators"
	"github.com/angelmondragon/telcobill-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// inbox adapts a per-customer notification action into a handler.
func inbox(svc notifications.Service, logg *logger.Logger, action func(r *http.Request, customerID uuid.UUID) (any, error)) http.HandlerFunc {
	if svc == nil {
		return unavailable("notifications", logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := action(r, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// ListNotifications returns a page of the customer's notifications, newest first.
// unread_only=true narrows it to unread ones.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, customerID uuid.UUID) (any, error) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		unread, err := unreadOnly(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{CustomerID: customerID, Page: page, UnreadOnly: unread})
	})
}

func unreadOnly(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("unread_only"))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unread_only value").
			WithDetails(map[string]any{"unread_only": raw})
	}
	return v, nil
}

// NotificationUnreadCount reports how many notifications the customer has not read.
func NotificationUnreadCount(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, customerID uuid.UUID) (any, error) {
		n, err := svc.UnreadCount(r.Context(), customerID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"unread": n}, nil
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, customerID uuid.UUID) (any, error) {
		id, err := validators.URLParamUUID(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), customerID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, customerID uuid.UUID) (any, error) {
		updated, err := svc.MarkAllRead(r.Context(), customerID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}
