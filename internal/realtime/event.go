// Package realtime fans change signals out to websocket subscribers. Events
// carry only the changed row's table and id; clients refetch what they need.
package realtime

import (
	"context"
	"fmt"
)

// Action names the kind of change that happened to a row.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Event is the payload pushed to subscribers.
type Event struct {
	Topic string `json:"topic"`
	Table string `json:"table"`
	Event Action `json:"event"`
	ID    uint64 `json:"id"`
}

// Publisher delivers events to every subscriber of their topic.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func NotificationsTopic(userID uint64) string {
	return fmt.Sprintf("notifications:%d", userID)
}

func ConversationTopic(conversationID uint64) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

func ProjectTopic(projectID uint64) string {
	return fmt.Sprintf("project:%d", projectID)
}
