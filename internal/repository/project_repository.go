package repository

import (
	"context"

	"github.com/yukikurage/tasko/internal/models"
	"gorm.io/gorm"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// Create creates a new project
func (r *GormProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// FindByID finds a project by ID
func (r *GormProjectRepository) FindByID(ctx context.Context, id uint64) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Preload("Owner").First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// Update updates a project
func (r *GormProjectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).
		Model(project).
		Select("name", "description", "status", "updated_at").
		Updates(project).Error
}

// Delete deletes a project and all related data in a transaction
func (r *GormProjectRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", id).Delete(&models.Activity{}).Error; err != nil {
			return err
		}

		// Teams outlive the project they were linked to
		if err := tx.Model(&models.Team{}).
			Where("project_id = ?", id).
			Update("project_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Project{}, id).Error
	})
}

// ListForUser lists accepted memberships of a user
func (r *GormProjectRepository) ListForUser(ctx context.Context, userID uint64) ([]models.ProjectMember, error) {
	var memberships []models.ProjectMember
	if err := r.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = project_members.project_id AND projects.deleted_at IS NULL").
		Preload("Project").
		Preload("Project.Owner").
		Where("project_members.user_id = ? AND project_members.status = ?", userID, models.MembershipAccepted).
		Order("projects.updated_at DESC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListInvitationsForUser lists pending memberships of a user
func (r *GormProjectRepository) ListInvitationsForUser(ctx context.Context, userID uint64) ([]models.ProjectMember, error) {
	var memberships []models.ProjectMember
	if err := r.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = project_members.project_id AND projects.deleted_at IS NULL").
		Preload("Project").
		Where("project_members.user_id = ? AND project_members.status = ?", userID, models.MembershipPending).
		Order("project_members.created_at DESC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// AddMember adds a member to a project
func (r *GormProjectRepository) AddMember(ctx context.Context, member *models.ProjectMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// FindMember finds a specific project member
func (r *GormProjectRepository) FindMember(ctx context.Context, projectID, userID uint64) (*models.ProjectMember, error) {
	var member models.ProjectMember
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateMember updates the role and status of a membership
func (r *GormProjectRepository) UpdateMember(ctx context.Context, member *models.ProjectMember) error {
	return r.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", member.ProjectID, member.UserID).
		Updates(map[string]interface{}{
			"role":      member.Role,
			"status":    member.Status,
			"joined_at": member.JoinedAt,
		}).Error
}

// RemoveMember removes a member from a project
func (r *GormProjectRepository) RemoveMember(ctx context.Context, projectID, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{}).Error
}

// ListMembers lists all members of a project
func (r *GormProjectRepository) ListMembers(ctx context.Context, projectID uint64) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
