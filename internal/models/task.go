package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists the board columns in display order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusReview,
	TaskStatusCompleted,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      TaskStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Priority    TaskPriority   `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	DueDate     *time.Time     `json:"due_date"`
	AssignedTo  *uint64        `json:"assigned_to"`
	CreatedBy   uint64         `gorm:"not null" json:"created_by"`
	ProjectID   uint64         `gorm:"not null" json:"project_id"`
	TeamID      *uint64        `json:"team_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Assignee *User `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	Creator  User  `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
}
