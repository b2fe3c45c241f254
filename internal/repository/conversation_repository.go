package repository

import (
	"context"
	"time"

	"github.com/yukikurage/tasko/internal/models"
	"gorm.io/gorm"
)

// GormConversationRepository is a GORM implementation of ConversationRepository
type GormConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &GormConversationRepository{db: db}
}

// Create creates a conversation together with its participants
func (r *GormConversationRepository) Create(ctx context.Context, conversation *models.Conversation, participantIDs []uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(conversation).Error; err != nil {
			return err
		}

		now := time.Now()
		participants := make([]models.ConversationParticipant, len(participantIDs))
		for i, id := range participantIDs {
			participants[i] = models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         id,
				JoinedAt:       now,
			}
		}

		return tx.Omit("User").Create(&participants).Error
	})
}

// FindByID finds a conversation with its participants
func (r *GormConversationRepository) FindByID(ctx context.Context, id uint64) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&conversation, id).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ListForUser lists the conversations a user takes part in
func (r *GormConversationRepository) ListForUser(ctx context.Context, userID uint64) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants ON conversation_participants.conversation_id = conversations.id").
		Where("conversation_participants.user_id = ?", userID).
		Preload("Participants").
		Preload("Participants.User").
		Order("conversations.updated_at DESC").
		Find(&conversations).Error; err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *GormConversationRepository) FindParticipant(ctx context.Context, conversationID, userID uint64) (*models.ConversationParticipant, error) {
	var participant models.ConversationParticipant
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error; err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *GormConversationRepository) ParticipantIDs(ctx context.Context, conversationID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// AddMessage stores a message and bumps the conversation's updated_at
func (r *GormConversationRepository) AddMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(message).Error; err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("updated_at", message.CreatedAt).Error
	})
}

// ListMessages lists up to limit messages, oldest first
func (r *GormConversationRepository) ListMessages(ctx context.Context, conversationID, beforeID uint64, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}

	var messages []models.Message
	if err := query.Preload("Sender").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	// Fetched newest first so the limit keeps the latest page
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *GormConversationRepository) MarkRead(ctx context.Context, conversationID, userID uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", at).Error
}
