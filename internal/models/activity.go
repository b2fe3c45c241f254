package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityType string

const (
	ActivityTaskCreated   ActivityType = "task_created"
	ActivityTaskUpdated   ActivityType = "task_updated"
	ActivityStatusChanged ActivityType = "status_changed"
	ActivityTaskDeleted   ActivityType = "task_deleted"
	ActivityMemberJoined  ActivityType = "member_joined"
)

// Activity is an append-only audit record for a project.
type Activity struct {
	ID        uint64            `gorm:"primarykey" json:"id"`
	ProjectID uint64            `gorm:"not null" json:"project_id"`
	TaskID    *uint64           `json:"task_id"`
	UserID    uint64            `gorm:"not null" json:"user_id"`
	Type      ActivityType      `gorm:"type:varchar(50);not null" json:"type"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
