package models

import "time"

type Conversation struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	CreatedBy uint64    `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

type ConversationParticipant struct {
	ConversationID uint64     `gorm:"primarykey" json:"conversation_id"`
	UserID         uint64     `gorm:"primarykey" json:"user_id"`
	LastReadAt     *time.Time `json:"last_read_at"`
	JoinedAt       time.Time  `json:"joined_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type Message struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	ConversationID uint64    `gorm:"not null" json:"conversation_id"`
	SenderID       uint64    `gorm:"not null" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	// Relations
	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
