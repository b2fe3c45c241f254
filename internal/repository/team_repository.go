package repository

import (
	"context"
	"strings"

	"github.com/yukikurage/tasko/internal/models"
	"gorm.io/gorm"
)

// GormTeamRepository is a GORM implementation of TeamRepository
type GormTeamRepository struct {
	db *gorm.DB
}

// NewTeamRepository creates a new TeamRepository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &GormTeamRepository{db: db}
}

// Create creates a new team
func (r *GormTeamRepository) Create(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Omit("Members", "Owner").Create(team).Error
}

// FindByID finds a team by ID
func (r *GormTeamRepository) FindByID(ctx context.Context, id uint64) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).Preload("Owner").First(&team, id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// Update updates a team's editable fields
func (r *GormTeamRepository) Update(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).
		Model(team).
		Select("name", "description", "project_id", "updated_at").
		Updates(team).Error
}

// Delete deletes a team and all related data in a transaction
func (r *GormTeamRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("team_id = ?", id).
			Update("team_id", nil).Error; err != nil {
			return err
		}

		if err := tx.Where("team_id = ?", id).Delete(&models.TeamInvitation{}).Error; err != nil {
			return err
		}

		if err := tx.Where("team_id = ?", id).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Team{}, id).Error
	})
}

// ListForUser lists all teams a user is a member of
func (r *GormTeamRepository) ListForUser(ctx context.Context, userID uint64) ([]models.TeamMember, error) {
	var memberships []models.TeamMember
	if err := r.db.WithContext(ctx).
		Joins("JOIN teams ON teams.id = team_members.team_id AND teams.deleted_at IS NULL").
		Preload("Team").
		Where("team_members.user_id = ?", userID).
		Order("teams.name ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// TeamIDsForUser returns the ids of the project's teams a user belongs to
func (r *GormTeamRepository) TeamIDsForUser(ctx context.Context, userID, projectID uint64) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Joins("JOIN teams ON teams.id = team_members.team_id AND teams.deleted_at IS NULL").
		Where("team_members.user_id = ? AND teams.project_id = ?", userID, projectID).
		Pluck("team_members.team_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AddMembers adds members to a team
func (r *GormTeamRepository) AddMembers(ctx context.Context, members []models.TeamMember) error {
	if len(members) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Team", "User").Create(&members).Error
}

// FindMember finds a specific team member
func (r *GormTeamRepository) FindMember(ctx context.Context, teamID, userID uint64) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateMember updates a member's role
func (r *GormTeamRepository) UpdateMember(ctx context.Context, member *models.TeamMember) error {
	return r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", member.TeamID, member.UserID).
		Update("role", member.Role).Error
}

// RemoveMember removes a member from a team
func (r *GormTeamRepository) RemoveMember(ctx context.Context, teamID, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMember{}).Error
}

// ListMembers lists all members of a team
func (r *GormTeamRepository) ListMembers(ctx context.Context, teamID uint64) ([]models.TeamMember, error) {
	var members []models.TeamMember
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// CreateInvitations stores invitations
func (r *GormTeamRepository) CreateInvitations(ctx context.Context, invitations []models.TeamInvitation) error {
	if len(invitations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Team").Create(&invitations).Error
}

// FindPendingInvitation finds a pending invitation addressed to email
func (r *GormTeamRepository) FindPendingInvitation(ctx context.Context, id uint64, email string) (*models.TeamInvitation, error) {
	var invitation models.TeamInvitation
	if err := r.db.WithContext(ctx).
		Where("id = ? AND LOWER(email) = ? AND status = ?", id, strings.ToLower(email), models.InvitationPending).
		First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// UpdateInvitation records the response to an invitation
func (r *GormTeamRepository) UpdateInvitation(ctx context.Context, invitation *models.TeamInvitation) error {
	return r.db.WithContext(ctx).
		Model(invitation).
		Select("status", "responded_at", "updated_at").
		Updates(invitation).Error
}

// ListPendingInvitations lists pending invitations addressed to email
func (r *GormTeamRepository) ListPendingInvitations(ctx context.Context, email string) ([]models.TeamInvitation, error) {
	var invitations []models.TeamInvitation
	if err := r.db.WithContext(ctx).
		Joins("JOIN teams ON teams.id = team_invitations.team_id AND teams.deleted_at IS NULL").
		Preload("Team").
		Where("LOWER(team_invitations.email) = ? AND team_invitations.status = ?", strings.ToLower(email), models.InvitationPending).
		Order("team_invitations.created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}
