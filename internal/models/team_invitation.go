package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

type TeamInvitation struct {
	ID          uint64           `gorm:"primarykey" json:"id"`
	TeamID      uint64           `gorm:"not null;index" json:"team_id"`
	Email       string           `gorm:"type:varchar(255);not null;index" json:"email"`
	Role        TeamRole         `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Status      InvitationStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	InvitedBy   uint64           `gorm:"not null" json:"invited_by"`
	RespondedAt *time.Time       `json:"responded_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Relations
	Team Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
}
