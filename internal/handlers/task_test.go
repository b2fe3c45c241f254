package handlers

import (
	"net/http"

	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/models"
)

func (s *APITestSuite) createTask(actor *models.User, projectID uint64, body map[string]interface{}) dto.TaskDTO {
	w := s.request(http.MethodPost, path("/api/projects/%d/tasks", projectID), body, actor)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var task dto.TaskDTO
	s.decode(w, &task)
	return task
}

func (s *APITestSuite) TestCreateTask_Success() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")

	task := s.createTask(owner, projectID, map[string]interface{}{
		"title":    "Write docs",
		"priority": "high",
		"due_date": "2030-01-15",
	})

	s.Equal("Write docs", task.Title)
	s.Equal(models.TaskStatusPending, task.Status)
	s.Equal(models.TaskPriorityHigh, task.Priority)
	s.Require().NotNil(task.DueDate)
	s.Equal(2030, task.DueDate.Year())
	s.Equal(owner.ID, task.CreatedBy)
	s.Nil(task.AssignedTo)
	s.Require().NotNil(task.Creator)
	s.Equal(owner.Email, task.Creator.Email)
}

func (s *APITestSuite) TestCreateTask_InvalidRequest() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")

	w := s.request(http.MethodPost, path("/api/projects/%d/tasks", projectID), map[string]interface{}{
		"description": "missing title",
	}, owner)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPost, path("/api/projects/%d/tasks", projectID), map[string]interface{}{
		"title":    "Bad date",
		"due_date": "next tuesday",
	}, owner)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestCreateTask_MemberSelfAssigned() {
	owner := s.createUser("owner@example.com")
	member := s.createUser("member@example.com")
	projectID := s.createProject(owner, "Launch")
	s.addMember(projectID, member, models.ProjectRoleMember)

	task := s.createTask(member, projectID, map[string]interface{}{"title": "Mine"})

	s.Require().NotNil(task.AssignedTo)
	s.Equal(member.ID, *task.AssignedTo)
}

func (s *APITestSuite) TestCreateTask_ViewerForbidden() {
	owner := s.createUser("owner@example.com")
	viewer := s.createUser("viewer@example.com")
	projectID := s.createProject(owner, "Launch")
	s.addMember(projectID, viewer, models.ProjectRoleViewer)

	w := s.request(http.MethodPost, path("/api/projects/%d/tasks", projectID), map[string]interface{}{
		"title": "Not allowed",
	}, viewer)
	s.Require().Equal(http.StatusForbidden, w.Code)

	var apiErr apierrors.APIError
	s.decode(w, &apiErr)
	s.Equal(apierrors.ErrCodeForbidden, apiErr.Code)
	s.Equal("Viewers cannot create or modify tasks", apiErr.Message)
}

func (s *APITestSuite) TestCreateTask_NotProjectMember() {
	owner := s.createUser("owner@example.com")
	outsider := s.createUser("outsider@example.com")
	projectID := s.createProject(owner, "Launch")

	w := s.request(http.MethodPost, path("/api/projects/%d/tasks", projectID), map[string]interface{}{
		"title": "Sneaky",
	}, outsider)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APITestSuite) TestListTasks_Unauthorized() {
	w := s.request(http.MethodGet, "/api/projects/1/tasks", nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestListTasks_FiltersAndPagination() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")

	s.createTask(owner, projectID, map[string]interface{}{"title": "Alpha", "priority": "low"})
	s.createTask(owner, projectID, map[string]interface{}{"title": "Beta", "priority": "high"})
	s.createTask(owner, projectID, map[string]interface{}{"title": "Gamma", "priority": "high"})

	w := s.request(http.MethodGet, path("/api/projects/%d/tasks?priority=high&limit=1", projectID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var list dto.TaskListResponse
	s.decode(w, &list)
	s.Equal(int64(2), list.TotalCount)
	s.Equal(2, list.TotalPages)
	s.Len(list.Tasks, 1)

	w = s.request(http.MethodGet, path("/api/projects/%d/tasks?q=alp", projectID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &list)
	s.Require().Len(list.Tasks, 1)
	s.Equal("Alpha", list.Tasks[0].Title)

	w = s.request(http.MethodGet, path("/api/projects/%d/tasks?assigned_to=abc", projectID), nil, owner)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestGetTask_BadIDAndMissing() {
	owner := s.createUser("owner@example.com")

	w := s.request(http.MethodGet, "/api/tasks/abc", nil, owner)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.request(http.MethodGet, "/api/tasks/9999", nil, owner)
	s.Require().Equal(http.StatusNotFound, w.Code)

	var apiErr apierrors.APIError
	s.decode(w, &apiErr)
	s.Equal(apierrors.ErrCodeNotFound, apiErr.Code)
}

func (s *APITestSuite) TestUpdateTask_NullDueDate() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")
	task := s.createTask(owner, projectID, map[string]interface{}{
		"title":    "Dated",
		"due_date": "2030-01-15T09:00:00Z",
	})
	s.Require().NotNil(task.DueDate)

	w := s.request(http.MethodPatch, path("/api/tasks/%d", task.ID), map[string]interface{}{
		"title":    "Undated",
		"due_date": nil,
	}, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var updated dto.TaskDTO
	s.decode(w, &updated)
	s.Equal("Undated", updated.Title)
	s.Nil(updated.DueDate)
}

func (s *APITestSuite) TestUpdateTask_InvalidRequest() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")
	task := s.createTask(owner, projectID, map[string]interface{}{"title": "Typed"})

	w := s.request(http.MethodPatch, path("/api/tasks/%d", task.ID), map[string]interface{}{
		"title": 42,
	}, owner)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPatch, path("/api/tasks/%d", task.ID), map[string]interface{}{
		"title": "   ",
	}, owner)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestChangeStatus_FollowsWorkflow() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")
	task := s.createTask(owner, projectID, map[string]interface{}{"title": "Flow"})

	w := s.request(http.MethodPost, path("/api/tasks/%d/status", task.ID), map[string]string{
		"status": "completed",
	}, owner)
	s.Require().Equal(http.StatusBadRequest, w.Code)

	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Allowed []models.TaskStatus `json:"allowed"`
		} `json:"details"`
	}
	s.decode(w, &apiErr)
	s.Equal(apierrors.ErrCodeInvalidTransition, apiErr.Code)
	s.Equal([]models.TaskStatus{models.TaskStatusInProgress}, apiErr.Details.Allowed)

	w = s.request(http.MethodPost, path("/api/tasks/%d/status", task.ID), map[string]string{
		"status": "in_progress",
	}, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var moved dto.TaskDTO
	s.decode(w, &moved)
	s.Equal(models.TaskStatusInProgress, moved.Status)
}

func (s *APITestSuite) TestBoard_ReturnsEveryColumn() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")
	s.createTask(owner, projectID, map[string]interface{}{"title": "Card"})

	w := s.request(http.MethodGet, path("/api/projects/%d/board", projectID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var board struct {
		Columns []dto.BoardColumnDTO `json:"columns"`
	}
	s.decode(w, &board)
	s.Require().Len(board.Columns, 4)
	s.Equal(models.TaskStatusPending, board.Columns[0].Status)
	s.Len(board.Columns[0].Tasks, 1)
	s.Equal([]models.TaskStatus{models.TaskStatusInProgress}, board.Columns[0].Next)
}

func (s *APITestSuite) TestDeleteTask() {
	owner := s.createUser("owner@example.com")
	member := s.createUser("member@example.com")
	projectID := s.createProject(owner, "Launch")
	s.addMember(projectID, member, models.ProjectRoleMember)
	task := s.createTask(member, projectID, map[string]interface{}{"title": "Temporary"})

	w := s.request(http.MethodDelete, path("/api/tasks/%d", task.ID), nil, member)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodDelete, path("/api/tasks/%d", task.ID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, path("/api/tasks/%d", task.ID), nil, owner)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestSuggestTasks_NotConfigured() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")

	w := s.request(http.MethodPost, path("/api/projects/%d/tasks/suggest", projectID), map[string]string{
		"text": "Plan the launch party",
	}, owner)
	s.Require().Equal(http.StatusServiceUnavailable, w.Code)

	var apiErr apierrors.APIError
	s.decode(w, &apiErr)
	s.Equal(apierrors.ErrCodeServiceUnavailable, apiErr.Code)
}
