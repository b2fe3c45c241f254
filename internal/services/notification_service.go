package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService reads a user's notifications. The read flag is the
// only field ever changed after creation.
type NotificationService struct {
	store     repository.Store
	publisher realtime.Publisher
}

func NewNotificationService(store repository.Store, publisher realtime.Publisher) *NotificationService {
	return &NotificationService{store: store, publisher: publisher}
}

func (s *NotificationService) List(ctx context.Context, userID uint64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error) {
	notifications, total, err := s.store.Notifications().List(ctx, userID, unreadOnly, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	count, err := s.store.Notifications().CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint64) error {
	n, err := s.store.Notifications().FindForUser(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to find notification: %w", err)
	}
	if n.Read {
		return nil
	}

	if err := s.store.Notifications().MarkRead(ctx, n.ID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	fx := &effects{}
	fx.signal(realtime.NotificationsTopic(userID), "notifications", realtime.ActionUpdate, n.ID)
	fx.flush(ctx, s.publisher)
	return nil
}

// MarkAllRead marks every unread notification of the user as read and
// returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	updated, err := s.store.Notifications().MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	if updated > 0 {
		fx := &effects{}
		fx.signal(realtime.NotificationsTopic(userID), "notifications", realtime.ActionUpdate, 0)
		fx.flush(ctx, s.publisher)
	}
	return updated, nil
}
