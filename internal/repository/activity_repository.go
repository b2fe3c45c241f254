package repository

import (
	"context"

	"github.com/yukikurage/tasko/internal/database"
	"github.com/yukikurage/tasko/internal/models"
	"gorm.io/gorm"
)

// GormActivityRepository is a GORM implementation of ActivityRepository
type GormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &GormActivityRepository{db: db}
}

// Create appends an activity record
func (r *GormActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Omit("User").Create(activity).Error
}

// ListByProject lists a project's activity, newest first
func (r *GormActivityRepository) ListByProject(ctx context.Context, projectID uint64, page, pageSize int) ([]models.Activity, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Activity{}).Where("project_id = ?", projectID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("created_at DESC").Order("id DESC").Scopes(database.Paginate(page, pageSize))

	var activities []models.Activity
	if err := listQuery.Preload("User").Find(&activities).Error; err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}
