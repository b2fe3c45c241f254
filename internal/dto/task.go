package dto

import (
	"time"

	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/services"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
	ProjectID   uint64              `json:"project_id"`
	TeamID      *uint64             `json:"team_id"`
	AssignedTo  *uint64             `json:"assigned_to"`
	CreatedBy   uint64              `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Assignee    *UserDTO            `json:"assignee,omitempty"`
	Creator     *UserDTO            `json:"creator,omitempty"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO `json:"tasks"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// BoardColumnDTO is one kanban column
type BoardColumnDTO struct {
	Status models.TaskStatus   `json:"status"`
	Tasks  []TaskDTO           `json:"tasks"`
	Next   []models.TaskStatus `json:"next"`
}

// SuggestedTaskDTO is an AI suggestion the client may turn into a task
type SuggestedTaskDTO struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		ProjectID:   task.ProjectID,
		TeamID:      task.TeamID,
		AssignedTo:  task.AssignedTo,
		CreatedBy:   task.CreatedBy,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		Assignee:    userRef(task.Assignee),
		Creator:     userRef(&task.Creator),
	}
}

func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	out := make([]TaskDTO, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, ToTaskDTO(task))
	}
	return out
}

// ToTaskListResponse converts a page of tasks
func ToTaskListResponse(tasks []models.Task, page, pageSize int, total int64) TaskListResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return TaskListResponse{
		Tasks:      ToTaskDTOs(tasks),
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}
}

func ToBoard(columns []services.BoardColumn) []BoardColumnDTO {
	out := make([]BoardColumnDTO, 0, len(columns))
	for _, col := range columns {
		next := col.Next
		if next == nil {
			next = []models.TaskStatus{}
		}
		out = append(out, BoardColumnDTO{
			Status: col.Status,
			Tasks:  ToTaskDTOs(col.Tasks),
			Next:   next,
		})
	}
	return out
}

func ToSuggestedTasks(tasks []services.GeneratedTask) []SuggestedTaskDTO {
	out := make([]SuggestedTaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, SuggestedTaskDTO(t))
	}
	return out
}
