package repository

import (
	"context"
	"time"

	"github.com/yukikurage/tasko/internal/database"
	"github.com/yukikurage/tasko/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Assignee", "Creator").Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.WithContext(ctx)

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.WithContext(ctx).Model(&models.Task{}).Where("tasks.project_id = ?", filter.ProjectID)

	// Apply filters
	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.AssignedTo != nil {
		query = query.Where("tasks.assigned_to = ?", *filter.AssignedTo)
	}
	if filter.TeamID != nil {
		query = query.Where("tasks.team_id = ?", *filter.TeamID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("(tasks.title LIKE ? OR tasks.description LIKE ?)", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query
	switch filter.Sort {
	case SortByDueDate:
		listQuery = listQuery.Order("CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END, tasks.due_date ASC")
	case SortByPriority:
		listQuery = listQuery.Order("CASE tasks.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, tasks.created_at DESC")
	default:
		listQuery = listQuery.Order("tasks.created_at DESC")
	}
	listQuery = listQuery.Order("tasks.id DESC")

	if err := listQuery.Scopes(database.Paginate(filter.Page, filter.PageSize)).Preload("Assignee").Preload("Creator").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).
		Model(task).
		Select("title", "description", "status", "priority", "due_date", "assigned_to", "team_id", "updated_at").
		Updates(task).Error
}

// Delete soft deletes a task
func (r *GormTaskRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Task{}, id).Error
}

type groupCount struct {
	Grp   string
	Count int64
}

type assigneeCount struct {
	AssignedTo *uint64
	Count      int64
}

// Stats aggregates task counts of a project
func (r *GormTaskRepository) Stats(ctx context.Context, projectID uint64, now time.Time) (*TaskStats, error) {
	db := r.db.WithContext(ctx)
	stats := &TaskStats{
		ByStatus:     make(map[models.TaskStatus]int64),
		ByPriority:   make(map[models.TaskPriority]int64),
		OpenByAssign: make(map[uint64]int64),
	}

	var byStatus []groupCount
	if err := db.Model(&models.Task{}).
		Select("status AS grp, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[models.TaskStatus(row.Grp)] = row.Count
		stats.Total += row.Count
	}

	var byPriority []groupCount
	if err := db.Model(&models.Task{}).
		Select("priority AS grp, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("priority").
		Scan(&byPriority).Error; err != nil {
		return nil, err
	}
	for _, row := range byPriority {
		stats.ByPriority[models.TaskPriority(row.Grp)] = row.Count
	}

	if err := db.Model(&models.Task{}).
		Where("project_id = ? AND status <> ? AND due_date IS NOT NULL AND due_date < ?", projectID, models.TaskStatusCompleted, now).
		Count(&stats.Overdue).Error; err != nil {
		return nil, err
	}

	var byAssignee []assigneeCount
	if err := db.Model(&models.Task{}).
		Select("assigned_to, COUNT(*) AS count").
		Where("project_id = ? AND status <> ?", projectID, models.TaskStatusCompleted).
		Group("assigned_to").
		Scan(&byAssignee).Error; err != nil {
		return nil, err
	}
	for _, row := range byAssignee {
		if row.AssignedTo == nil {
			stats.Unassigned = row.Count
			continue
		}
		stats.OpenByAssign[*row.AssignedTo] = row.Count
	}

	return stats, nil
}
