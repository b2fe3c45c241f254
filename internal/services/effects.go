package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/logging"
	"github.com/yukikurage/tasko/internal/metrics"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
)

// effects collects the notification and activity rows written alongside a
// mutation, and the realtime events and e-mails to send once the transaction
// commits.
type effects struct {
	events        []realtime.Event
	notifications []models.NotificationType
	mails         []func() error
}

func (e *effects) notify(ctx context.Context, tx repository.Store, userID uint64, kind models.NotificationType, message string, relatedID *uint64) error {
	n := &models.Notification{
		UserID:    userID,
		Type:      kind,
		Message:   message,
		RelatedID: relatedID,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	e.notifications = append(e.notifications, kind)
	e.signal(realtime.NotificationsTopic(userID), "notifications", realtime.ActionInsert, n.ID)
	return nil
}

func (e *effects) record(ctx context.Context, tx repository.Store, activity *models.Activity) error {
	if err := tx.Activities().Create(ctx, activity); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	e.signal(realtime.ProjectTopic(activity.ProjectID), "activities", realtime.ActionInsert, activity.ID)
	return nil
}

func (e *effects) signal(topic, table string, action realtime.Action, id uint64) {
	e.events = append(e.events, realtime.Event{Topic: topic, Table: table, Event: action, ID: id})
}

func (e *effects) mail(send func() error) {
	e.mails = append(e.mails, send)
}

// flush publishes collected events and sends queued mail. It must only be
// called after commit; delivery failures are logged and never reach the caller.
func (e *effects) flush(ctx context.Context, publisher realtime.Publisher) {
	for _, kind := range e.notifications {
		metrics.RecordNotification(string(kind))
	}

	for _, send := range e.mails {
		if err := send(); err != nil {
			logging.LogError("invitation_email", err, nil)
		}
	}

	if publisher == nil {
		return
	}
	for _, event := range e.events {
		err := publisher.Publish(ctx, event)
		metrics.RecordRealtimeEvent(event.Table, err)
		if err != nil {
			logging.LogError("realtime_publish", err, logrus.Fields{
				"topic": event.Topic,
				"table": event.Table,
				"id":    event.ID,
			})
		}
	}
}
