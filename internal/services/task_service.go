package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/tasko/internal/constants"
	"github.com/yukikurage/tasko/internal/metrics"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/policy"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrTitleRequired          = errors.New("title is required")
	ErrTitleEmpty             = errors.New("title cannot be empty")
	ErrInvalidStatus          = errors.New("invalid task status")
	ErrInvalidPriority        = errors.New("invalid task priority")
	ErrInvalidSort            = errors.New("invalid sort field")
	ErrAssigneeNotMember      = errors.New("assignee must be a member of the project")
	ErrTeamNotInProject       = errors.New("team does not belong to this project")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
	ErrAITooManyTasks         = fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
)

// TaskService handles task business logic
type TaskService struct {
	store     repository.Store
	resolver  Resolver
	publisher realtime.Publisher
	suggester TaskSuggester
}

// NewTaskService creates a new TaskService. suggester may be nil.
func NewTaskService(store repository.Store, publisher realtime.Publisher, suggester TaskSuggester) *TaskService {
	return &TaskService{
		store:     store,
		publisher: publisher,
		suggester: suggester,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	ProjectID  uint64
	ActorID    uint64
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssignedTo *uint64
	TeamID     *uint64
	Search     string
	Sort       string
	Page       int
	PageSize   int
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	ProjectID   uint64
	ActorID     uint64
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
	AssignedTo  *uint64
	TeamID      *uint64
}

// UpdateTaskInput represents a partial task update. Nil fields are left
// untouched; the Clear flags null out the matching column.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	AssignedTo    *uint64
	ClearAssignee bool
	TeamID        *uint64
	ClearTeam     bool
}

// BoardColumn is one kanban column.
type BoardColumn struct {
	Status models.TaskStatus
	Tasks  []models.Task
	// Next lists the statuses a card in this column may be moved to.
	Next []models.TaskStatus
}

// authorize wraps policy.CanPerform and counts denials.
func authorize(role models.ProjectRole, action policy.Action, tc policy.TaskContext) error {
	err := policy.CanPerform(role, action, tc)
	recordDenial(err, string(action))
	return err
}

func recordDenial(err error, action string) {
	var denial *policy.Denial
	if errors.As(err, &denial) {
		metrics.RecordPolicyDenial(action)
	}
}

// taskContext gathers the team memberships the policy needs.
// Only teams linked to the project count.
func taskContext(ctx context.Context, store repository.Store, projectID, actorID uint64, assignee, teamID *uint64) (policy.TaskContext, error) {
	tc := policy.TaskContext{ActorID: actorID, Assignee: assignee, TeamID: teamID}

	actorTeams, err := store.Teams().TeamIDsForUser(ctx, actorID, projectID)
	if err != nil {
		return tc, fmt.Errorf("failed to load teams: %w", err)
	}
	tc.ActorTeamIDs = actorTeams

	if assignee != nil && *assignee != actorID {
		assigneeTeams, err := store.Teams().TeamIDsForUser(ctx, *assignee, projectID)
		if err != nil {
			return tc, fmt.Errorf("failed to load assignee teams: %w", err)
		}
		tc.AssigneeTeamIDs = assigneeTeams
	}

	return tc, nil
}

// validateTaskRefs checks that the assignee and team belong to the project
func validateTaskRefs(ctx context.Context, store repository.Store, project *models.Project, assignee, teamID *uint64) error {
	if assignee != nil {
		ok, err := isProjectMember(ctx, store, project, *assignee)
		if err != nil {
			return fmt.Errorf("failed to verify assignee: %w", err)
		}
		if !ok {
			return ErrAssigneeNotMember
		}
	}

	if teamID != nil {
		team, err := store.Teams().FindByID(ctx, *teamID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTeamNotInProject
			}
			return fmt.Errorf("failed to find team: %w", err)
		}
		if team.ProjectID == nil || *team.ProjectID != project.ID {
			return ErrTeamNotInProject
		}
	}

	return nil
}

// ListTasks returns the tasks of a project matching the filters
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	_, role, err := s.resolver.ProjectRole(ctx, s.store, input.ProjectID, input.ActorID)
	if err != nil {
		return nil, 0, err
	}
	if err := authorize(role, policy.ActionViewProject, policy.TaskContext{ActorID: input.ActorID}); err != nil {
		return nil, 0, err
	}

	if input.Status != nil && !input.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, 0, ErrInvalidPriority
	}

	sort := repository.TaskSort(input.Sort)
	switch sort {
	case "":
		sort = repository.SortByCreatedAt
	case repository.SortByCreatedAt, repository.SortByDueDate, repository.SortByPriority:
	default:
		return nil, 0, ErrInvalidSort
	}

	tasks, total, err := s.store.Tasks().List(ctx, repository.TaskFilter{
		ProjectID:  input.ProjectID,
		Status:     input.Status,
		Priority:   input.Priority,
		AssignedTo: input.AssignedTo,
		TeamID:     input.TeamID,
		Search:     strings.TrimSpace(input.Search),
		Sort:       sort,
		Page:       input.Page,
		PageSize:   input.PageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// Board groups every task of a project into status columns
func (s *TaskService) Board(ctx context.Context, projectID, actorID uint64) ([]BoardColumn, error) {
	tasks, _, err := s.ListTasks(ctx, ListTasksInput{
		ProjectID: projectID,
		ActorID:   actorID,
		Sort:      string(repository.SortByPriority),
	})
	if err != nil {
		return nil, err
	}

	columns := make([]BoardColumn, len(models.TaskStatuses))
	index := make(map[models.TaskStatus]int, len(models.TaskStatuses))
	for i, status := range models.TaskStatuses {
		columns[i] = BoardColumn{Status: status, Tasks: []models.Task{}, Next: policy.NextStatuses(status)}
		index[status] = i
	}
	for _, task := range tasks {
		if i, ok := index[task.Status]; ok {
			columns[i].Tasks = append(columns[i].Tasks, task)
		}
	}

	return columns, nil
}

// GetTask returns a task the actor can view
func (s *TaskService) GetTask(ctx context.Context, taskID, actorID uint64) (*models.Task, error) {
	task, err := s.store.Tasks().FindByID(ctx, taskID, "Assignee", "Creator")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	_, role, err := s.resolver.ProjectRole(ctx, s.store, task.ProjectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(role, policy.ActionViewProject, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, err
	}

	return task, nil
}

// CreateTask creates a task and writes its activity and assignment
// notification in the same transaction
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	if input.Status == "" {
		input.Status = models.TaskStatusPending
	} else if !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	} else if !input.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	var task *models.Task
	fx := &effects{}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		project, role, err := s.resolver.ProjectRole(ctx, tx, input.ProjectID, input.ActorID)
		if err != nil {
			return err
		}

		assignee := input.AssignedTo
		if assignee == nil && role == models.ProjectRoleMember {
			self := input.ActorID
			assignee = &self
		}

		tc, err := taskContext(ctx, tx, project.ID, input.ActorID, assignee, input.TeamID)
		if err != nil {
			return err
		}
		if err := authorize(role, policy.ActionCreateTask, tc); err != nil {
			return err
		}
		if err := validateTaskRefs(ctx, tx, project, assignee, input.TeamID); err != nil {
			return err
		}

		task = &models.Task{
			Title:       title,
			Description: input.Description,
			Status:      input.Status,
			Priority:    input.Priority,
			DueDate:     input.DueDate,
			AssignedTo:  assignee,
			CreatedBy:   input.ActorID,
			ProjectID:   project.ID,
			TeamID:      input.TeamID,
		}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		if err := fx.record(ctx, tx, &models.Activity{
			ProjectID: project.ID,
			TaskID:    &task.ID,
			UserID:    input.ActorID,
			Type:      models.ActivityTaskCreated,
			Message:   fmt.Sprintf("Created task %q", task.Title),
		}); err != nil {
			return err
		}

		if assignee != nil {
			if err := fx.notify(ctx, tx, *assignee, models.NotificationTaskAssigned,
				fmt.Sprintf("You have been assigned to %q", task.Title), &task.ID); err != nil {
				return err
			}
		}

		fx.signal(realtime.ProjectTopic(project.ID), "tasks", realtime.ActionInsert, task.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.flush(ctx, s.publisher)
	metrics.RecordTaskMutation("create")

	return s.store.Tasks().FindByID(ctx, task.ID, "Assignee", "Creator")
}

// UpdateTask applies a partial update. The task and the actor's role are
// re-read inside the transaction, and the side effects are written with it.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, actorID uint64, input UpdateTaskInput) (*models.Task, error) {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, ErrTitleEmpty
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	fx := &effects{}
	var statusChange [2]models.TaskStatus
	statusChanged := false

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		task, err := tx.Tasks().FindByID(ctx, taskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to find task: %w", err)
		}

		project, role, err := s.resolver.ProjectRole(ctx, tx, task.ProjectID, actorID)
		if err != nil {
			return err
		}

		tc, err := taskContext(ctx, tx, task.ProjectID, actorID, input.AssignedTo, input.TeamID)
		if err != nil {
			return err
		}
		tc.Current = &policy.TaskState{AssignedTo: task.AssignedTo, TeamID: task.TeamID}
		tc.ClearAssignee = input.ClearAssignee && input.AssignedTo == nil
		tc.ClearTeam = input.ClearTeam && input.TeamID == nil
		if err := authorize(role, policy.ActionUpdateTask, tc); err != nil {
			return err
		}
		if err := validateTaskRefs(ctx, tx, project, input.AssignedTo, input.TeamID); err != nil {
			return err
		}

		before := *task
		applyTaskUpdate(task, input)

		if task.Status != before.Status {
			if err := policy.CanTransition(before.Status, task.Status); err != nil {
				return err
			}
		}

		if !taskChanged(&before, task) {
			return nil
		}

		if err := tx.Tasks().Update(ctx, task); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		if task.AssignedTo != nil && !sameID(before.AssignedTo, task.AssignedTo) {
			if err := fx.notify(ctx, tx, *task.AssignedTo, models.NotificationTaskAssigned,
				fmt.Sprintf("You have been assigned to %q", task.Title), &task.ID); err != nil {
				return err
			}
		}

		if task.Status != before.Status {
			statusChanged = true
			statusChange = [2]models.TaskStatus{before.Status, task.Status}

			if err := fx.notify(ctx, tx, task.CreatedBy, models.NotificationTaskStatusChanged,
				fmt.Sprintf("%q moved from %s to %s", task.Title, before.Status, task.Status), &task.ID); err != nil {
				return err
			}
			if err := fx.record(ctx, tx, &models.Activity{
				ProjectID: task.ProjectID,
				TaskID:    &task.ID,
				UserID:    actorID,
				Type:      models.ActivityStatusChanged,
				Message:   fmt.Sprintf("Moved %q from %s to %s", task.Title, before.Status, task.Status),
				Metadata: map[string]interface{}{
					"from": string(before.Status),
					"to":   string(task.Status),
				},
			}); err != nil {
				return err
			}
		} else {
			if err := fx.record(ctx, tx, &models.Activity{
				ProjectID: task.ProjectID,
				TaskID:    &task.ID,
				UserID:    actorID,
				Type:      models.ActivityTaskUpdated,
				Message:   fmt.Sprintf("Updated task %q", task.Title),
			}); err != nil {
				return err
			}
		}

		fx.signal(realtime.ProjectTopic(task.ProjectID), "tasks", realtime.ActionUpdate, task.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.flush(ctx, s.publisher)
	if len(fx.events) > 0 {
		metrics.RecordTaskMutation("update")
	}
	if statusChanged {
		metrics.RecordStatusTransition(string(statusChange[0]), string(statusChange[1]))
	}

	return s.store.Tasks().FindByID(ctx, taskID, "Assignee", "Creator")
}

// ChangeStatus moves a task to another board column
func (s *TaskService) ChangeStatus(ctx context.Context, taskID, actorID uint64, status models.TaskStatus) (*models.Task, error) {
	return s.UpdateTask(ctx, taskID, actorID, UpdateTaskInput{Status: &status})
}

// DeleteTask soft deletes a task. Only admins and managers may do this.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actorID uint64) error {
	fx := &effects{}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		task, err := tx.Tasks().FindByID(ctx, taskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to find task: %w", err)
		}

		_, role, err := s.resolver.ProjectRole(ctx, tx, task.ProjectID, actorID)
		if err != nil {
			return err
		}
		tc := policy.TaskContext{
			ActorID: actorID,
			Current: &policy.TaskState{AssignedTo: task.AssignedTo, TeamID: task.TeamID},
		}
		if err := authorize(role, policy.ActionDeleteTask, tc); err != nil {
			return err
		}

		if err := tx.Tasks().Delete(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}

		if err := fx.record(ctx, tx, &models.Activity{
			ProjectID: task.ProjectID,
			TaskID:    &task.ID,
			UserID:    actorID,
			Type:      models.ActivityTaskDeleted,
			Message:   fmt.Sprintf("Deleted task %q", task.Title),
		}); err != nil {
			return err
		}

		fx.signal(realtime.ProjectTopic(task.ProjectID), "tasks", realtime.ActionDelete, task.ID)
		return nil
	})
	if err != nil {
		return err
	}

	fx.flush(ctx, s.publisher)
	metrics.RecordTaskMutation("delete")
	return nil
}

// SuggestTasks uses AI to draft tasks from text. Nothing is persisted.
func (s *TaskService) SuggestTasks(ctx context.Context, projectID, actorID uint64, text string) ([]GeneratedTask, error) {
	project, role, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(role, policy.ActionCreateTask, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, err
	}

	if s.suggester == nil {
		return nil, ErrAIServiceNotConfigured
	}

	aiTasks, err := s.suggester.SuggestTasks(ctx, project.Name, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(aiTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(aiTasks) > constants.MaxAIGeneratedTasks {
		return nil, ErrAITooManyTasks
	}

	validTasks := make([]GeneratedTask, 0, len(aiTasks))
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, aiTask := range aiTasks {
		aiTask.Title = strings.TrimSpace(aiTask.Title)
		if aiTask.Title == "" {
			continue
		}

		if aiTask.DueDate != nil && aiTask.DueDate.Before(cutoff) {
			aiTask.DueDate = nil
		}
		if !aiTask.Priority.Valid() {
			aiTask.Priority = models.TaskPriorityMedium
		}

		validTasks = append(validTasks, aiTask)
	}

	if len(validTasks) == 0 {
		return nil, ErrAINoValidTasks
	}

	return validTasks, nil
}

func applyTaskUpdate(task *models.Task, input UpdateTaskInput) {
	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.AssignedTo != nil {
		task.AssignedTo = input.AssignedTo
	} else if input.ClearAssignee {
		task.AssignedTo = nil
	}
	if input.TeamID != nil {
		task.TeamID = input.TeamID
	} else if input.ClearTeam {
		task.TeamID = nil
	}
}

func taskChanged(before, after *models.Task) bool {
	return before.Title != after.Title ||
		before.Description != after.Description ||
		before.Status != after.Status ||
		before.Priority != after.Priority ||
		!sameTime(before.DueDate, after.DueDate) ||
		!sameID(before.AssignedTo, after.AssignedTo) ||
		!sameID(before.TeamID, after.TeamID)
}

func sameID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
