package models

import "time"

type NotificationType string

const (
	NotificationTaskAssigned      NotificationType = "task_assigned"
	NotificationTaskStatusChanged NotificationType = "task_status_changed"
	NotificationProjectInvitation NotificationType = "project_invitation"
	NotificationTeamInvitation    NotificationType = "team_invitation"
)

// Notification is a per-user inbox entry. Only Read changes after creation.
type Notification struct {
	ID        uint64           `gorm:"primarykey" json:"id"`
	UserID    uint64           `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(50);not null" json:"type"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	RelatedID *uint64          `json:"related_id"`
	Read      bool             `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
