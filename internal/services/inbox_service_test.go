package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/policy"
	"github.com/yukikurage/tasko/internal/realtime"
)

func TestInboxService_Conversation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := NewInboxService(env.store, env.publisher)

	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	carol := env.createUser(t, "carol@example.com")

	_, err := svc.CreateConversation(ctx, alice.ID, []uint64{alice.ID}, "")
	assert.ErrorIs(t, err, ErrNoParticipants)

	_, err = svc.CreateConversation(ctx, alice.ID, []uint64{bob.ID, 4242}, "")
	assert.ErrorIs(t, err, ErrUserNotFound)

	conv, err := svc.CreateConversation(ctx, alice.ID, []uint64{bob.ID, bob.ID}, " Planning ")
	require.NoError(t, err)
	assert.Equal(t, "Planning", conv.Title)
	assert.Len(t, conv.Participants, 2)

	_, err = svc.SendMessage(ctx, conv.ID, alice.ID, "   ")
	assert.ErrorIs(t, err, ErrMessageEmpty)

	first, err := svc.SendMessage(ctx, conv.ID, alice.ID, "hello")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, conv.ID, bob.ID, "hi!")
	require.NoError(t, err)
	assert.Contains(t, env.publisher.topics(), realtime.ConversationTopic(conv.ID))

	_, err = svc.SendMessage(ctx, conv.ID, carol.ID, "let me in")
	assert.ErrorIs(t, err, policy.ErrNotParticipant)

	_, err = svc.ListMessages(ctx, conv.ID, carol.ID, 0, 10)
	assert.ErrorIs(t, err, policy.ErrNotParticipant)

	_, err = svc.ListMessages(ctx, 999, alice.ID, 0, 10)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	messages, err := svc.ListMessages(ctx, conv.ID, bob.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "hi!", messages[1].Content)

	older, err := svc.ListMessages(ctx, conv.ID, bob.ID, messages[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, first.ID, older[0].ID)

	var participant models.ConversationParticipant
	require.NoError(t, env.db.Where("conversation_id = ? AND user_id = ?", conv.ID, bob.ID).First(&participant).Error)
	assert.NotNil(t, participant.LastReadAt)

	list, err := svc.ListConversations(ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotificationService_ReadFlags(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(env.store, env.publisher)
	tasks := newTaskService(env)

	owner := env.createUser(t, "owner@example.com")
	dev := env.createUser(t, "dev@example.com")
	project := env.createProject(t, owner)
	env.addMember(t, project.ID, dev, models.ProjectRoleMember)

	for _, title := range []string{"one", "two", "three"} {
		_, err := tasks.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ActorID: owner.ID, Title: title, AssignedTo: &dev.ID})
		require.NoError(t, err)
	}

	count, err := svc.UnreadCount(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	list, total, err := svc.List(ctx, dev.ID, false, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Contains(t, list[0].Message, "three")

	// Another user's notification is invisible
	assert.ErrorIs(t, svc.MarkRead(ctx, owner.ID, list[0].ID), ErrNotificationNotFound)

	require.NoError(t, svc.MarkRead(ctx, dev.ID, list[0].ID))
	require.NoError(t, svc.MarkRead(ctx, dev.ID, list[0].ID))

	unread, total, err := svc.List(ctx, dev.ID, true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, unread, 2)

	updated, err := svc.MarkAllRead(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	count, err = svc.UnreadCount(ctx, dev.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubscriptionService_Topics(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := NewSubscriptionService(env.store)
	inbox := NewInboxService(env.store, env.publisher)

	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	carol := env.createUser(t, "carol@example.com")

	project := env.createProject(t, alice)
	conv, err := inbox.CreateConversation(ctx, alice.ID, []uint64{bob.ID}, "")
	require.NoError(t, err)

	topics, err := svc.Topics(ctx, bob.ID, []uint64{conv.ID, 777}, []uint64{project.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{realtime.NotificationsTopic(bob.ID), realtime.ConversationTopic(conv.ID)}, topics)

	topics, err = svc.Topics(ctx, alice.ID, []uint64{conv.ID}, []uint64{project.ID, 555})
	require.NoError(t, err)
	assert.Equal(t, []string{
		realtime.NotificationsTopic(alice.ID),
		realtime.ConversationTopic(conv.ID),
		realtime.ProjectTopic(project.ID),
	}, topics)

	topics, err = svc.Topics(ctx, carol.ID, []uint64{conv.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{realtime.NotificationsTopic(carol.ID)}, topics)
}
