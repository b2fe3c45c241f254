package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/realtime"
)

func (s *APITestSuite) dial(server *httptest.Server, user *models.User, query string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/realtime" + query
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token(user))

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	s.Require().NoError(err)
	s.Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func (s *APITestSuite) readEvent(conn *websocket.Conn) realtime.Event {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, payload, err := conn.ReadMessage()
	s.Require().NoError(err)

	var event realtime.Event
	s.Require().NoError(json.Unmarshal(payload, &event))
	return event
}

func (s *APITestSuite) TestRealtime_AssignmentNotification() {
	owner := s.createUser("owner@example.com")
	member := s.createUser("member@example.com")
	projectID := s.createProject(owner, "Launch")
	s.addMember(projectID, member, models.ProjectRoleMember)

	server := httptest.NewServer(s.router)
	defer server.Close()

	conn := s.dial(server, member, "")
	defer conn.Close()

	topic := realtime.NotificationsTopic(member.ID)
	s.Require().Eventually(func() bool {
		return s.hub.Subscribers(topic) == 1
	}, 2*time.Second, 10*time.Millisecond)

	task := s.createTask(owner, projectID, map[string]interface{}{
		"title":       "Review PR",
		"assigned_to": member.ID,
	})

	event := s.readEvent(conn)
	s.Equal(topic, event.Topic)
	s.Equal("notifications", event.Table)
	s.Equal(realtime.ActionInsert, event.Event)
	s.NotZero(event.ID)
	s.NotZero(task.ID)
}

func (s *APITestSuite) TestRealtime_ProjectTopicRequiresMembership() {
	owner := s.createUser("owner@example.com")
	outsider := s.createUser("outsider@example.com")
	projectID := s.createProject(owner, "Launch")

	server := httptest.NewServer(s.router)
	defer server.Close()

	ownerConn := s.dial(server, owner, path("?project_id=%d", projectID))
	defer ownerConn.Close()
	outsiderConn := s.dial(server, outsider, path("?project_id=%d", projectID))
	defer outsiderConn.Close()

	projectTopic := realtime.ProjectTopic(projectID)
	s.Require().Eventually(func() bool {
		return s.hub.Subscribers(projectTopic) == 1 &&
			s.hub.Subscribers(realtime.NotificationsTopic(outsider.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	task := s.createTask(owner, projectID, map[string]interface{}{"title": "Ship it"})

	// Activity first, then the task row itself
	event := s.readEvent(ownerConn)
	s.Equal(projectTopic, event.Topic)
	s.Equal("activities", event.Table)

	event = s.readEvent(ownerConn)
	s.Equal("tasks", event.Table)
	s.Equal(task.ID, event.ID)
}

func (s *APITestSuite) TestRealtime_RequiresAuth() {
	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/realtime"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}
