package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"gorm.io/gorm"
)

// SubscriptionService decides which realtime topics a connection may join
type SubscriptionService struct {
	store    repository.Store
	resolver Resolver
}

func NewSubscriptionService(store repository.Store) *SubscriptionService {
	return &SubscriptionService{store: store}
}

// Topics returns the topics the user is allowed to follow. The user's own
// notification topic is always included; requested conversations and
// projects the user cannot see are silently dropped.
func (s *SubscriptionService) Topics(ctx context.Context, userID uint64, conversationIDs, projectIDs []uint64) ([]string, error) {
	topics := []string{realtime.NotificationsTopic(userID)}

	for _, id := range uniqueUint64(conversationIDs) {
		_, err := s.store.Conversations().FindParticipant(ctx, id, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to find participant: %w", err)
		}
		topics = append(topics, realtime.ConversationTopic(id))
	}

	for _, id := range uniqueUint64(projectIDs) {
		_, role, err := s.resolver.ProjectRole(ctx, s.store, id, userID)
		if err != nil {
			if errors.Is(err, ErrProjectNotFound) {
				continue
			}
			return nil, err
		}
		if role.Valid() {
			topics = append(topics, realtime.ProjectTopic(id))
		}
	}

	return topics, nil
}
