// Package notifications is the append-only per-user message log fed by
// lifecycle transitions.
package notifications

import (
	"context"
	"strings"

	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/metrics"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/errors"
	"github.com/mealbridge/mealbridge/internal/logging"
)

// Service owns the notification log.
type Service struct {
	store storage.NotificationStore
	log   *logging.Logger
}

// New constructs a notification service.
func New(store storage.NotificationStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// Emit appends an immutable record addressed to userID. It fails only on a
// storage fault.
func (s *Service) Emit(ctx context.Context, userID string, typ notification.Type, message string, contact notification.ContactDetails) (notification.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return notification.Notification{}, errors.Validation("notification target is required")
	}

	ntf, err := s.store.CreateNotification(ctx, notification.Notification{
		UserID:         userID,
		Message:        message,
		Type:           typ,
		ContactDetails: contact,
	})
	if err != nil {
		return notification.Notification{}, err
	}
	metrics.RecordNotification(string(typ))

	s.log.WithContext(ctx).
		WithField("notification_id", ntf.ID).
		WithField("user_id", userID).
		WithField("type", string(typ)).
		Info("notification emitted")
	return ntf, nil
}

// ListFor returns the caller's notifications, most-recent-first.
func (s *Service) ListFor(ctx context.Context, userID string) ([]notification.Notification, error) {
	return s.store.ListNotificationsForUser(ctx, userID)
}

// MarkRead flips the read flag. Idempotent. Only the target user may mark
// their own notification read.
func (s *Service) MarkRead(ctx context.Context, id, callerID string) (notification.Notification, error) {
	ntf, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if ntf.UserID != callerID {
		return notification.Notification{}, errors.Forbidden("notification belongs to another user")
	}
	if ntf.Read {
		return ntf, nil
	}
	return s.store.MarkNotificationRead(ctx, id)
}
