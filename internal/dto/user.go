package dto

import (
	"time"

	"github.com/yukikurage/tasko/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	User        UserDTO `json:"user"`
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	}
}

// userRef converts a preloaded relation, or nil when it was not loaded.
func userRef(user *models.User) *UserDTO {
	if user == nil || user.ID == 0 {
		return nil
	}
	u := ToUserDTO(*user)
	return &u
}
