package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/logging"
	"github.com/yukikurage/tasko/internal/mailer"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/policy"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"github.com/yukikurage/tasko/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrNameRequired         = errors.New("name is required")
	ErrInvalidProjectStatus = errors.New("invalid project status")
	ErrInvalidRole          = errors.New("invalid role")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrMemberNotFound       = errors.New("member not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
)

// ProjectService handles projects and their memberships
type ProjectService struct {
	store     repository.Store
	resolver  Resolver
	publisher realtime.Publisher
	mailer    mailer.Mailer
}

// NewProjectService creates a new ProjectService
func NewProjectService(store repository.Store, publisher realtime.Publisher, m mailer.Mailer) *ProjectService {
	return &ProjectService{
		store:     store,
		publisher: publisher,
		mailer:    m,
	}
}

// ProjectWithRole pairs a project with the caller's role in it
type ProjectWithRole struct {
	Project models.Project
	Role    models.ProjectRole
}

// ProjectDetail is a project with its memberships and the caller's role
type ProjectDetail struct {
	Project *models.Project
	Role    models.ProjectRole
	Members []models.ProjectMember
}

// ProjectReport summarizes a project's tasks
type ProjectReport struct {
	*repository.TaskStats
	CompletionRate float64
}

type CreateProjectInput struct {
	Name        string
	Description string
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
}

// CreateProject creates a project in the planning state and makes the
// caller its accepted admin
func (s *ProjectService) CreateProject(ctx context.Context, ownerID uint64, input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	project := &models.Project{
		Name:        name,
		Description: input.Description,
		Status:      models.ProjectStatusPlanning,
		OwnerID:     ownerID,
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Projects().Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		now := time.Now()
		return tx.Projects().AddMember(ctx, &models.ProjectMember{
			ProjectID: project.ID,
			UserID:    ownerID,
			Role:      models.ProjectRoleAdmin,
			Status:    models.MembershipAccepted,
			JoinedAt:  &now,
		})
	})
	if err != nil {
		return nil, err
	}

	logging.LogEvent("project_created", logrus.Fields{"project_id": project.ID, "owner_id": ownerID})
	return s.store.Projects().FindByID(ctx, project.ID)
}

// ListProjects lists the projects the user has accepted membership in
func (s *ProjectService) ListProjects(ctx context.Context, userID uint64) ([]ProjectWithRole, error) {
	memberships, err := s.store.Projects().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	result := make([]ProjectWithRole, len(memberships))
	for i, m := range memberships {
		role := m.Role
		if m.Project.OwnerID == userID {
			role = models.ProjectRoleAdmin
		}
		result[i] = ProjectWithRole{Project: m.Project, Role: role}
	}
	return result, nil
}

// ListInvitations lists projects the user has been invited to but not joined
func (s *ProjectService) ListInvitations(ctx context.Context, userID uint64) ([]models.ProjectMember, error) {
	invitations, err := s.store.Projects().ListInvitationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project invitations: %w", err)
	}
	return invitations, nil
}

// GetProject returns a project with its members
func (s *ProjectService) GetProject(ctx context.Context, projectID, actorID uint64) (*ProjectDetail, error) {
	project, role, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(role, policy.ActionViewProject, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, err
	}

	members, err := s.store.Projects().ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return &ProjectDetail{Project: project, Role: role, Members: members}, nil
}

// UpdateProject changes a project's name, description or status
func (s *ProjectService) UpdateProject(ctx context.Context, projectID, actorID uint64, input UpdateProjectInput) (*models.Project, error) {
	project, role, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(role, policy.ActionUpdateProject, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidProjectStatus
		}
		project.Status = *input.Status
	}

	if err := s.store.Projects().Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	fx := &effects{}
	fx.signal(realtime.ProjectTopic(project.ID), "projects", realtime.ActionUpdate, project.ID)
	fx.flush(ctx, s.publisher)

	return project, nil
}

// DeleteProject deletes a project. Only its owner may do this.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID, actorID uint64) error {
	project, role, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return err
	}
	if !role.Valid() {
		return policy.ErrNotProjectMember
	}
	if project.OwnerID != actorID {
		recordDenial(policy.ErrDeleteProject, "project:delete")
		return policy.ErrDeleteProject
	}

	if err := s.store.Projects().Delete(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	fx := &effects{}
	fx.signal(realtime.ProjectTopic(projectID), "projects", realtime.ActionDelete, projectID)
	fx.flush(ctx, s.publisher)

	logging.LogEvent("project_deleted", logrus.Fields{"project_id": projectID, "actor_id": actorID})
	return nil
}

// ListMembers lists every membership of a project, pending included
func (s *ProjectService) ListMembers(ctx context.Context, projectID, actorID uint64) ([]models.ProjectMember, error) {
	_, role, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(role, policy.ActionViewProject, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, err
	}

	members, err := s.store.Projects().ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// InviteMember adds a registered user to the project as a pending member
// and notifies them
func (s *ProjectService) InviteMember(ctx context.Context, projectID, actorID uint64, email string, role models.ProjectRole) (*models.ProjectMember, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	var member *models.ProjectMember
	fx := &effects{}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		project, actorRole, err := s.resolver.ProjectRole(ctx, tx, projectID, actorID)
		if err != nil {
			return err
		}
		if err := authorize(actorRole, policy.ActionManageMembers, policy.TaskContext{ActorID: actorID}); err != nil {
			return err
		}
		if role == models.ProjectRoleAdmin && actorRole != models.ProjectRoleAdmin {
			recordDenial(policy.ErrGrantAdmin, string(policy.ActionChangeRoles))
			return policy.ErrGrantAdmin
		}

		invitee, err := tx.Users().FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to find user: %w", err)
		}
		if invitee.ID == project.OwnerID {
			return ErrAlreadyMember
		}

		if _, err := tx.Projects().FindMember(ctx, projectID, invitee.ID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find project member: %w", err)
		}

		inviter, err := tx.Users().FindByID(ctx, actorID)
		if err != nil {
			return fmt.Errorf("failed to find inviter: %w", err)
		}

		member = &models.ProjectMember{
			ProjectID: projectID,
			UserID:    invitee.ID,
			Role:      role,
			Status:    models.MembershipPending,
			InvitedBy: &actorID,
		}
		if err := tx.Projects().AddMember(ctx, member); err != nil {
			return fmt.Errorf("failed to add project member: %w", err)
		}

		if err := fx.notify(ctx, tx, invitee.ID, models.NotificationProjectInvitation,
			fmt.Sprintf("%s invited you to the project %q", displayName(inviter), project.Name), &project.ID); err != nil {
			return err
		}

		projectName, inviterName := project.Name, displayName(inviter)
		fx.mail(func() error {
			return s.mailer.SendProjectInvitation(invitee.Email, projectName, inviterName)
		})
		fx.signal(realtime.ProjectTopic(projectID), "project_members", realtime.ActionInsert, invitee.ID)
		member.User = *invitee
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.flush(ctx, s.publisher)
	return member, nil
}

// UpdateMemberRole changes a member's role. Only admins may do this and the
// owner's membership is fixed.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, projectID, actorID, userID uint64, role models.ProjectRole) (*models.ProjectMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	project, actorRole, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actorRole, policy.ActionChangeRoles, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, err
	}
	if userID == project.OwnerID {
		return nil, policy.ErrProjectOwnerFixed
	}

	member, err := s.store.Projects().FindMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to find project member: %w", err)
	}

	member.Role = role
	if err := s.store.Projects().UpdateMember(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to update project member: %w", err)
	}

	fx := &effects{}
	fx.signal(realtime.ProjectTopic(projectID), "project_members", realtime.ActionUpdate, userID)
	fx.flush(ctx, s.publisher)

	return member, nil
}

// RemoveMember removes a membership. Admins may remove anyone but the owner;
// any member may remove themselves.
func (s *ProjectService) RemoveMember(ctx context.Context, projectID, actorID, userID uint64) error {
	project, actorRole, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return err
	}
	if userID == project.OwnerID {
		return policy.ErrProjectOwnerFixed
	}
	if actorID != userID {
		if err := authorize(actorRole, policy.ActionChangeRoles, policy.TaskContext{ActorID: actorID}); err != nil {
			return err
		}
	}

	if _, err := s.store.Projects().FindMember(ctx, projectID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to find project member: %w", err)
	}

	if err := s.store.Projects().RemoveMember(ctx, projectID, userID); err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}

	fx := &effects{}
	fx.signal(realtime.ProjectTopic(projectID), "project_members", realtime.ActionDelete, userID)
	fx.flush(ctx, s.publisher)

	return nil
}

// RespondToInvitation accepts or rejects a pending project membership.
// Rejecting deletes the row.
func (s *ProjectService) RespondToInvitation(ctx context.Context, projectID, userID uint64, accept bool) error {
	fx := &effects{}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		member, err := tx.Projects().FindMember(ctx, projectID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvitationNotFound
			}
			return fmt.Errorf("failed to find project member: %w", err)
		}
		if member.Status != models.MembershipPending {
			return ErrInvitationNotFound
		}

		if !accept {
			if err := tx.Projects().RemoveMember(ctx, projectID, userID); err != nil {
				return fmt.Errorf("failed to reject invitation: %w", err)
			}
			fx.signal(realtime.ProjectTopic(projectID), "project_members", realtime.ActionDelete, userID)
			return nil
		}

		now := time.Now()
		member.Status = models.MembershipAccepted
		member.JoinedAt = &now
		if err := tx.Projects().UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("failed to accept invitation: %w", err)
		}

		user, err := tx.Users().FindByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to find user: %w", err)
		}
		if err := fx.record(ctx, tx, &models.Activity{
			ProjectID: projectID,
			UserID:    userID,
			Type:      models.ActivityMemberJoined,
			Message:   fmt.Sprintf("%s joined the project", displayName(user)),
		}); err != nil {
			return err
		}

		fx.signal(realtime.ProjectTopic(projectID), "project_members", realtime.ActionUpdate, userID)
		return nil
	})
	if err != nil {
		return err
	}

	fx.flush(ctx, s.publisher)
	return nil
}

// Report aggregates the project's tasks
func (s *ProjectService) Report(ctx context.Context, projectID, actorID uint64) (*ProjectReport, error) {
	_, role, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(role, policy.ActionViewProject, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, err
	}

	stats, err := s.store.Tasks().Stats(ctx, projectID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tasks: %w", err)
	}

	report := &ProjectReport{TaskStats: stats}
	if stats.Total > 0 {
		report.CompletionRate = float64(stats.ByStatus[models.TaskStatusCompleted]) / float64(stats.Total)
	}
	return report, nil
}

// Activities lists the project's activity log, newest first
func (s *ProjectService) Activities(ctx context.Context, projectID, actorID uint64, page, pageSize int) ([]models.Activity, int64, error) {
	_, role, err := s.resolver.ProjectRole(ctx, s.store, projectID, actorID)
	if err != nil {
		return nil, 0, err
	}
	if err := authorize(role, policy.ActionViewProject, policy.TaskContext{ActorID: actorID}); err != nil {
		return nil, 0, err
	}

	activities, total, err := s.store.Activities().ListByProject(ctx, projectID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, total, nil
}

func displayName(user *models.User) string {
	if user.FullName != "" {
		return user.FullName
	}
	return user.Email
}
