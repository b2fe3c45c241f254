package dto

import (
	"time"

	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/utils"
)

type NotificationDTO struct {
	ID        uint64                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	RelatedID *uint64                 `json:"related_id"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationDTO        `json:"notifications"`
	Pagination    utils.PaginationResponse `json:"pagination"`
}

type ConversationDTO struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	CreatedBy    uint64    `json:"created_by"`
	Participants []UserDTO `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MessageDTO struct {
	ID             uint64    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	SenderID       uint64    `json:"sender_id"`
	Sender         *UserDTO  `json:"sender,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func ToNotificationDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		RelatedID: n.RelatedID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func ToNotificationList(notifications []models.Notification, params utils.PaginationParams, total int64) NotificationListResponse {
	out := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, ToNotificationDTO(n))
	}
	return NotificationListResponse{
		Notifications: out,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}
}

func ToConversationDTO(conv models.Conversation) ConversationDTO {
	participants := make([]UserDTO, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.User.ID == 0 {
			participants = append(participants, UserDTO{ID: p.UserID})
			continue
		}
		participants = append(participants, ToUserDTO(p.User))
	}
	return ConversationDTO{
		ID:           conv.ID,
		Title:        conv.Title,
		CreatedBy:    conv.CreatedBy,
		Participants: participants,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
}

func ToConversations(convs []models.Conversation) []ConversationDTO {
	out := make([]ConversationDTO, 0, len(convs))
	for _, c := range convs {
		out = append(out, ToConversationDTO(c))
	}
	return out
}

func ToMessageDTO(m models.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         userRef(&m.Sender),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func ToMessages(messages []models.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, ToMessageDTO(m))
	}
	return out
}
