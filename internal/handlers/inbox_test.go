package handlers

import (
	"net/http"

	"github.com/yukikurage/tasko/internal/dto"
	"github.com/yukikurage/tasko/internal/models"
)

func (s *APITestSuite) TestNotifications_ListAndMarkRead() {
	owner := s.createUser("owner@example.com")
	member := s.createUser("member@example.com")
	projectID := s.createProject(owner, "Launch")
	s.addMember(projectID, member, models.ProjectRoleMember)

	s.createTask(owner, projectID, map[string]interface{}{"title": "First", "assigned_to": member.ID})
	s.createTask(owner, projectID, map[string]interface{}{"title": "Second", "assigned_to": member.ID})

	w := s.request(http.MethodGet, "/api/notifications?unread=true", nil, member)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var list dto.NotificationListResponse
	s.decode(w, &list)
	s.Require().Len(list.Notifications, 2)
	s.Equal(int64(2), list.Pagination.Total)
	s.Equal(models.NotificationTaskAssigned, list.Notifications[0].Type)

	w = s.request(http.MethodPost, path("/api/notifications/%d/read", list.Notifications[0].ID), nil, member)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// Someone else's notification is invisible
	w = s.request(http.MethodPost, path("/api/notifications/%d/read", list.Notifications[1].ID), nil, owner)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.request(http.MethodPost, "/api/notifications/read-all", nil, member)
	s.Require().Equal(http.StatusOK, w.Code)

	var updated struct {
		Updated int64 `json:"updated"`
	}
	s.decode(w, &updated)
	s.Equal(int64(1), updated.Updated)

	w = s.request(http.MethodGet, "/api/notifications/unread-count", nil, member)
	s.Require().Equal(http.StatusOK, w.Code)

	var count struct {
		Count int64 `json:"count"`
	}
	s.decode(w, &count)
	s.Zero(count.Count)
}

func (s *APITestSuite) TestConversations_SendAndList() {
	alice := s.createUser("alice@example.com")
	bob := s.createUser("bob@example.com")
	eve := s.createUser("eve@example.com")

	w := s.request(http.MethodPost, "/api/conversations", map[string]interface{}{
		"participant_ids": []uint64{bob.ID},
		"title":           "Planning",
	}, alice)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var conv dto.ConversationDTO
	s.decode(w, &conv)
	s.Equal("Planning", conv.Title)
	s.Len(conv.Participants, 2)

	for _, content := range []string{"hello", "how is it going?"} {
		w = s.request(http.MethodPost, path("/api/conversations/%d/messages", conv.ID), map[string]string{
			"content": content,
		}, bob)
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	}

	w = s.request(http.MethodGet, path("/api/conversations/%d/messages", conv.ID), nil, alice)
	s.Require().Equal(http.StatusOK, w.Code)

	var messages struct {
		Messages []dto.MessageDTO `json:"messages"`
	}
	s.decode(w, &messages)
	s.Require().Len(messages.Messages, 2)
	s.Equal("hello", messages.Messages[0].Content)
	s.Equal(bob.ID, messages.Messages[1].SenderID)

	w = s.request(http.MethodGet, path("/api/conversations/%d/messages?before_id=%d", conv.ID, messages.Messages[1].ID), nil, alice)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &messages)
	s.Require().Len(messages.Messages, 1)
	s.Equal("hello", messages.Messages[0].Content)

	w = s.request(http.MethodGet, path("/api/conversations/%d/messages", conv.ID), nil, eve)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodPost, path("/api/conversations/%d/messages", conv.ID), map[string]string{
		"content": "let me in",
	}, eve)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodGet, "/api/conversations", nil, bob)
	s.Require().Equal(http.StatusOK, w.Code)

	var convs struct {
		Conversations []dto.ConversationDTO `json:"conversations"`
	}
	s.decode(w, &convs)
	s.Require().Len(convs.Conversations, 1)
	s.Equal(conv.ID, convs.Conversations[0].ID)
}

func (s *APITestSuite) TestConversations_RequireAnotherParticipant() {
	alice := s.createUser("alice@example.com")

	w := s.request(http.MethodPost, "/api/conversations", map[string]interface{}{
		"participant_ids": []uint64{alice.ID},
	}, alice)
	s.Equal(http.StatusBadRequest, w.Code)
}
