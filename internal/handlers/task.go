package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/services"
	"github.com/yukikurage/tasko/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns a filtered, sorted page of a project's tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	input := services.ListTasksInput{
		ProjectID: projectID,
		ActorID:   userID,
		Search:    strings.TrimSpace(c.Query("q")),
		Sort:      c.Query("sort"),
	}

	if raw := c.Query("status"); raw != "" {
		status := models.TaskStatus(raw)
		input.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.TaskPriority(raw)
		input.Priority = &priority
	}

	var err error
	if input.AssignedTo, err = queryID(c, "assigned_to"); err != nil {
		respondError(c, err)
		return
	}
	if input.TeamID, err = queryID(c, "team_id"); err != nil {
		respondError(c, err)
		return
	}

	params := utils.GetPaginationParams(c)
	input.Page = params.Page
	input.PageSize = params.Limit

	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params.Page, params.Limit, total))
}

// Board returns the project's tasks grouped by status column
func (h *TaskHandler) Board(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	columns, err := h.taskService.Board(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"columns": dto.ToBoard(columns)})
}

// GetTask returns a specific task by ID
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id", "task ID")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), taskID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a new task in a project
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required"`
		Description string              `json:"description"`
		Status      models.TaskStatus   `json:"status"`
		Priority    models.TaskPriority `json:"priority"`
		DueDate     *string             `json:"due_date"`
		AssignedTo  *uint64             `json:"assigned_to"`
		TeamID      *uint64             `json:"team_id"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.CreateTaskInput{
		ProjectID:   projectID,
		ActorID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		TeamID:      req.TeamID,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			respondError(c, err)
			return
		}
		input.DueDate = &due
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update. Sending null for due_date,
// assigned_to or team_id clears the field.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id", "task ID")
	if !ok {
		return
	}

	body, ok := bindPatch(c)
	if !ok {
		return
	}

	input, err := taskUpdateFromPatch(body)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), taskID, userID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

func taskUpdateFromPatch(body patchBody) (services.UpdateTaskInput, error) {
	var input services.UpdateTaskInput
	var err error

	if input.Title, err = body.str("title"); err != nil {
		return input, err
	}
	if input.Description, err = body.str("description"); err != nil {
		return input, err
	}

	status, err := body.str("status")
	if err != nil {
		return input, err
	}
	if status != nil {
		s := models.TaskStatus(*status)
		input.Status = &s
	}

	priority, err := body.str("priority")
	if err != nil {
		return input, err
	}
	if priority != nil {
		p := models.TaskPriority(*priority)
		input.Priority = &p
	}

	if input.DueDate, err = body.date("due_date"); err != nil {
		return input, err
	}
	input.ClearDueDate = body.isNull("due_date")

	if input.AssignedTo, err = body.id("assigned_to"); err != nil {
		return input, err
	}
	input.ClearAssignee = body.isNull("assigned_to")

	if input.TeamID, err = body.id("team_id"); err != nil {
		return input, err
	}
	input.ClearTeam = body.isNull("team_id")

	return input, nil
}

// ChangeStatus moves a task to another board column
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id", "task ID")
	if !ok {
		return
	}

	type ChangeStatusRequest struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.ChangeStatus(c.Request.Context(), taskID, userID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id", "task ID")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), taskID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// SuggestTasks asks the AI service for tasks described by free text. Nothing is persisted.
func (h *TaskHandler) SuggestTasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	type SuggestTasksRequest struct {
		Text string `json:"text" binding:"required"`
	}

	var req SuggestTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	suggestions, err := h.taskService.SuggestTasks(c.Request.Context(), projectID, userID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": dto.ToSuggestedTasks(suggestions),
		"count": len(suggestions),
	})
}
