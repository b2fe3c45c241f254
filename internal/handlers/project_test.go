package handlers

import (
	"net/http"

	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/models"
)

func (s *APITestSuite) TestCreateProject_OwnerIsAdmin() {
	owner := s.createUser("owner@example.com")

	w := s.request(http.MethodPost, "/api/projects", map[string]string{
		"name":        "Launch",
		"description": "Q3 launch",
	}, owner)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var project dto.ProjectDTO
	s.decode(w, &project)
	s.Equal("Launch", project.Name)
	s.Equal(owner.ID, project.OwnerID)
	s.Equal(models.ProjectRoleAdmin, project.YourRole)

	w = s.request(http.MethodGet, "/api/projects", nil, owner)
	s.Require().Equal(http.StatusOK, w.Code)

	var list struct {
		Projects []dto.ProjectDTO `json:"projects"`
	}
	s.decode(w, &list)
	s.Require().Len(list.Projects, 1)
	s.Equal(project.ID, list.Projects[0].ID)
}

func (s *APITestSuite) TestCreateProject_MissingName() {
	owner := s.createUser("owner@example.com")

	w := s.request(http.MethodPost, "/api/projects", map[string]string{"description": "nameless"}, owner)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestGetProject_MembersAndAccess() {
	owner := s.createUser("owner@example.com")
	member := s.createUser("member@example.com")
	outsider := s.createUser("outsider@example.com")
	projectID := s.createProject(owner, "Launch")
	s.addMember(projectID, member, models.ProjectRoleMember)

	w := s.request(http.MethodGet, path("/api/projects/%d", projectID), nil, member)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var detail dto.ProjectDetailDTO
	s.decode(w, &detail)
	s.Equal(models.ProjectRoleMember, detail.YourRole)
	s.Len(detail.Members, 2)

	w = s.request(http.MethodGet, path("/api/projects/%d", projectID), nil, outsider)
	s.Require().Equal(http.StatusForbidden, w.Code)

	var apiErr apierrors.APIError
	s.decode(w, &apiErr)
	s.Equal("You are not a member of this project", apiErr.Message)

	w = s.request(http.MethodGet, "/api/projects/424242", nil, owner)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestUpdateAndDeleteProject() {
	owner := s.createUser("owner@example.com")
	manager := s.createUser("manager@example.com")
	projectID := s.createProject(owner, "Launch")
	s.addMember(projectID, manager, models.ProjectRoleManager)

	w := s.request(http.MethodPatch, path("/api/projects/%d", projectID), map[string]interface{}{
		"name": "Relaunch",
	}, manager)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var project dto.ProjectDTO
	s.decode(w, &project)
	s.Equal("Relaunch", project.Name)

	w = s.request(http.MethodDelete, path("/api/projects/%d", projectID), nil, manager)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodDelete, path("/api/projects/%d", projectID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, path("/api/projects/%d", projectID), nil, owner)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestProjectInvitation_AcceptFlow() {
	owner := s.createUser("owner@example.com")
	invitee := s.createUser("invitee@example.com")
	projectID := s.createProject(owner, "Launch")

	w := s.request(http.MethodPost, path("/api/projects/%d/members", projectID), map[string]string{
		"email": "invitee@example.com",
		"role":  "member",
	}, owner)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var member dto.ProjectMemberDTO
	s.decode(w, &member)
	s.Equal(invitee.ID, member.UserID)
	s.Equal(models.MembershipPending, member.Status)

	w = s.request(http.MethodPost, path("/api/projects/%d/members", projectID), map[string]string{
		"email": "invitee@example.com",
		"role":  "member",
	}, owner)
	s.Equal(http.StatusConflict, w.Code)

	w = s.request(http.MethodGet, "/api/invitations", nil, invitee)
	s.Require().Equal(http.StatusOK, w.Code)

	var pending struct {
		Projects []dto.ProjectInvitationDTO `json:"projects"`
		Teams    []dto.TeamInvitationDTO    `json:"teams"`
	}
	s.decode(w, &pending)
	s.Require().Len(pending.Projects, 1)
	s.Equal(projectID, pending.Projects[0].Project.ID)
	s.Empty(pending.Teams)

	// Pending members cannot see the project yet
	w = s.request(http.MethodGet, path("/api/projects/%d/tasks", projectID), nil, invitee)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodPost, path("/api/projects/%d/invitation", projectID), map[string]string{
		"status": "accepted",
	}, invitee)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.request(http.MethodGet, path("/api/projects/%d/activities", projectID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code)

	var activities dto.ActivityListResponse
	s.decode(w, &activities)
	s.Require().NotEmpty(activities.Activities)
	s.Equal(models.ActivityMemberJoined, activities.Activities[0].Type)

	w = s.request(http.MethodPost, path("/api/projects/%d/invitation", projectID), map[string]string{
		"status": "accepted",
	}, invitee)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestProjectInvitation_UnknownEmailAndBadAnswer() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")

	w := s.request(http.MethodPost, path("/api/projects/%d/members", projectID), map[string]string{
		"email": "ghost@example.com",
		"role":  "member",
	}, owner)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.request(http.MethodPost, path("/api/projects/%d/invitation", projectID), map[string]string{
		"status": "maybe",
	}, owner)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestProjectReport() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")
	s.createTask(owner, projectID, map[string]interface{}{"title": "One", "priority": "high"})
	s.createTask(owner, projectID, map[string]interface{}{"title": "Two"})

	w := s.request(http.MethodGet, path("/api/projects/%d/reports", projectID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var report dto.ProjectReportDTO
	s.decode(w, &report)
	s.Equal(int64(2), report.Total)
	s.Equal(int64(2), report.ByStatus[models.TaskStatusPending])
	s.Equal(int64(1), report.ByPriority[models.TaskPriorityHigh])
	s.Equal(int64(2), report.Unassigned)
	s.Equal(float64(0), report.CompletionRate)
}
