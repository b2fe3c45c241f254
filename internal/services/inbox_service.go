package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/tasko/internal/constants"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/policy"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoParticipants       = errors.New("a conversation needs at least one other participant")
	ErrMessageEmpty         = errors.New("message cannot be empty")
)

// InboxService handles direct conversations between users
type InboxService struct {
	store     repository.Store
	publisher realtime.Publisher
}

func NewInboxService(store repository.Store, publisher realtime.Publisher) *InboxService {
	return &InboxService{store: store, publisher: publisher}
}

// CreateConversation starts a conversation between the creator and the
// given users
func (s *InboxService) CreateConversation(ctx context.Context, creatorID uint64, participantIDs []uint64, title string) (*models.Conversation, error) {
	others := make([]uint64, 0, len(participantIDs))
	for _, id := range uniqueUint64(participantIDs) {
		if id != creatorID {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil, ErrNoParticipants
	}

	users, err := s.store.Users().FindByIDs(ctx, others)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	if len(users) != len(others) {
		return nil, ErrUserNotFound
	}

	conversation := &models.Conversation{
		Title:     strings.TrimSpace(title),
		CreatedBy: creatorID,
	}
	all := append([]uint64{creatorID}, others...)
	if err := s.store.Conversations().Create(ctx, conversation, all); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	fx := &effects{}
	for _, id := range all {
		fx.signal(realtime.NotificationsTopic(id), "conversations", realtime.ActionInsert, conversation.ID)
	}
	fx.flush(ctx, s.publisher)

	return s.store.Conversations().FindByID(ctx, conversation.ID)
}

// ListConversations lists the caller's conversations, most recent first
func (s *InboxService) ListConversations(ctx context.Context, userID uint64) ([]models.Conversation, error) {
	conversations, err := s.store.Conversations().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// ListMessages returns a page of messages, oldest first, and marks the
// conversation read for the caller
func (s *InboxService) ListMessages(ctx context.Context, conversationID, userID, beforeID uint64, limit int) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	messages, err := s.store.Conversations().ListMessages(ctx, conversationID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	if beforeID == 0 {
		if err := s.store.Conversations().MarkRead(ctx, conversationID, userID, time.Now()); err != nil {
			return nil, fmt.Errorf("failed to mark conversation read: %w", err)
		}
	}
	return messages, nil
}

// SendMessage posts a message to a conversation the caller takes part in
func (s *InboxService) SendMessage(ctx context.Context, conversationID, senderID uint64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if err := s.requireParticipant(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.store.Conversations().AddMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if err := s.store.Conversations().MarkRead(ctx, conversationID, senderID, message.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to mark conversation read: %w", err)
	}

	fx := &effects{}
	fx.signal(realtime.ConversationTopic(conversationID), "messages", realtime.ActionInsert, message.ID)
	fx.flush(ctx, s.publisher)

	return message, nil
}

func (s *InboxService) requireParticipant(ctx context.Context, conversationID, userID uint64) error {
	if _, err := s.store.Conversations().FindParticipant(ctx, conversationID, userID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find participant: %w", err)
		}
		if _, err := s.store.Conversations().FindByID(ctx, conversationID); errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return policy.ErrNotParticipant
	}
	return nil
}
