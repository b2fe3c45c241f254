package models

import "time"

// User is an authenticated principal. Users are never deleted by the application.
type User struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName     string    `gorm:"type:varchar(255)" json:"full_name"`
	AvatarURL    string    `gorm:"type:varchar(512)" json:"avatar_url"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
