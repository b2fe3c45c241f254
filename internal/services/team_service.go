package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/tasko/internal/mailer"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/policy"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"github.com/yukikurage/tasko/internal/utils"
	"gorm.io/gorm"
)

// TeamService handles teams, team memberships and invitations
type TeamService struct {
	store     repository.Store
	resolver  Resolver
	publisher realtime.Publisher
	mailer    mailer.Mailer
}

// NewTeamService creates a new TeamService
func NewTeamService(store repository.Store, publisher realtime.Publisher, m mailer.Mailer) *TeamService {
	return &TeamService{
		store:     store,
		publisher: publisher,
		mailer:    m,
	}
}

type CreateTeamInput struct {
	Name         string
	Description  string
	ProjectID    *uint64
	LeadID       *uint64
	MemberIDs    []uint64
	InviteEmails []string
}

type UpdateTeamInput struct {
	Name         *string
	Description  *string
	ProjectID    *uint64
	ClearProject bool
}

// TeamDetail is a team with its members and the caller's role
type TeamDetail struct {
	Team    *models.Team
	Role    models.TeamRole
	Members []models.TeamMember
}

// CreateTeam creates a team owned by the caller. The lead becomes an admin,
// the other listed users members, and each invite address gets a pending
// invitation.
func (s *TeamService) CreateTeam(ctx context.Context, ownerID uint64, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	team := &models.Team{
		Name:        name,
		Description: input.Description,
		OwnerID:     ownerID,
		ProjectID:   input.ProjectID,
	}
	fx := &effects{}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if input.ProjectID != nil {
			if err := requireProjectOwner(ctx, tx, *input.ProjectID, ownerID); err != nil {
				return err
			}
		}

		if err := tx.Teams().Create(ctx, team); err != nil {
			return fmt.Errorf("failed to create team: %w", err)
		}

		now := time.Now()
		members := []models.TeamMember{{TeamID: team.ID, UserID: ownerID, Role: models.TeamRoleOwner, JoinedAt: now}}
		userIDs := make([]uint64, 0, len(input.MemberIDs)+1)
		if input.LeadID != nil && *input.LeadID != ownerID {
			members = append(members, models.TeamMember{TeamID: team.ID, UserID: *input.LeadID, Role: models.TeamRoleAdmin, JoinedAt: now})
			userIDs = append(userIDs, *input.LeadID)
		}
		for _, id := range uniqueUint64(input.MemberIDs) {
			if id == ownerID || (input.LeadID != nil && id == *input.LeadID) {
				continue
			}
			members = append(members, models.TeamMember{TeamID: team.ID, UserID: id, Role: models.TeamRoleMember, JoinedAt: now})
			userIDs = append(userIDs, id)
		}

		if len(userIDs) > 0 {
			found, err := tx.Users().FindByIDs(ctx, userIDs)
			if err != nil {
				return fmt.Errorf("failed to find users: %w", err)
			}
			if len(found) != len(userIDs) {
				return ErrUserNotFound
			}
		}

		if err := tx.Teams().AddMembers(ctx, members); err != nil {
			return fmt.Errorf("failed to add team members: %w", err)
		}

		var invitations []models.TeamInvitation
		for _, email := range input.InviteEmails {
			email = strings.TrimSpace(email)
			if email == "" {
				continue
			}
			invitations = append(invitations, models.TeamInvitation{
				TeamID:    team.ID,
				Email:     email,
				Role:      models.TeamRoleMember,
				Status:    models.InvitationPending,
				InvitedBy: ownerID,
			})
		}
		if err := tx.Teams().CreateInvitations(ctx, invitations); err != nil {
			return fmt.Errorf("failed to create invitations: %w", err)
		}

		return s.announceInvitations(ctx, tx, fx, team, ownerID, invitations)
	})
	if err != nil {
		return nil, err
	}

	fx.flush(ctx, s.publisher)
	return s.store.Teams().FindByID(ctx, team.ID)
}

// ListTeams lists the caller's team memberships
func (s *TeamService) ListTeams(ctx context.Context, userID uint64) ([]models.TeamMember, error) {
	memberships, err := s.store.Teams().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return memberships, nil
}

// GetTeam returns a team with its members. Only members can view a team.
func (s *TeamService) GetTeam(ctx context.Context, teamID, actorID uint64) (*TeamDetail, error) {
	team, role, err := s.resolver.TeamRole(ctx, s.store, teamID, actorID)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, policy.ErrNotTeamMember
	}

	members, err := s.store.Teams().ListMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	return &TeamDetail{Team: team, Role: role, Members: members}, nil
}

// UpdateTeam changes a team's details. Only the owner may do this, and only
// the owner of a project may link the team to it.
func (s *TeamService) UpdateTeam(ctx context.Context, teamID, actorID uint64, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.ownedTeam(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		team.Name = name
	}
	if input.Description != nil {
		team.Description = *input.Description
	}
	if input.ProjectID != nil {
		if err := requireProjectOwner(ctx, s.store, *input.ProjectID, actorID); err != nil {
			return nil, err
		}
		team.ProjectID = input.ProjectID
	} else if input.ClearProject {
		team.ProjectID = nil
	}

	if err := s.store.Teams().Update(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	return team, nil
}

// DeleteTeam deletes a team. Only the owner may do this.
func (s *TeamService) DeleteTeam(ctx context.Context, teamID, actorID uint64) error {
	if _, err := s.ownedTeam(ctx, teamID, actorID); err != nil {
		return err
	}

	if err := s.store.Teams().Delete(ctx, teamID); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return nil
}

// InviteMember invites an e-mail address to the team
func (s *TeamService) InviteMember(ctx context.Context, teamID, actorID uint64, email string, role models.TeamRole) (*models.TeamInvitation, error) {
	email = strings.TrimSpace(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if role == "" {
		role = models.TeamRoleMember
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role == models.TeamRoleOwner {
		return nil, policy.ErrCannotAssignOwner
	}

	var invitation models.TeamInvitation
	fx := &effects{}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		team, err := s.authorizeTeam(ctx, tx, teamID, actorID, policy.ActionInviteTeamMember)
		if err != nil {
			return err
		}

		invitation = models.TeamInvitation{
			TeamID:    teamID,
			Email:     email,
			Role:      role,
			Status:    models.InvitationPending,
			InvitedBy: actorID,
		}
		invitations := []models.TeamInvitation{invitation}
		if err := tx.Teams().CreateInvitations(ctx, invitations); err != nil {
			return fmt.Errorf("failed to create invitation: %w", err)
		}
		invitation = invitations[0]

		return s.announceInvitations(ctx, tx, fx, team, actorID, invitations)
	})
	if err != nil {
		return nil, err
	}

	fx.flush(ctx, s.publisher)
	return &invitation, nil
}

// AddMember adds a registered user to the team directly
func (s *TeamService) AddMember(ctx context.Context, teamID, actorID, userID uint64, role models.TeamRole) (*models.TeamMember, error) {
	if role == "" {
		role = models.TeamRoleMember
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role == models.TeamRoleOwner {
		return nil, policy.ErrCannotAssignOwner
	}

	var member *models.TeamMember
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := s.authorizeTeam(ctx, tx, teamID, actorID, policy.ActionAddTeamMember); err != nil {
			return err
		}

		user, err := tx.Users().FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to find user: %w", err)
		}

		if _, err := tx.Teams().FindMember(ctx, teamID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find team member: %w", err)
		}

		member = &models.TeamMember{TeamID: teamID, UserID: userID, Role: role, JoinedAt: time.Now()}
		if err := tx.Teams().AddMembers(ctx, []models.TeamMember{*member}); err != nil {
			return fmt.Errorf("failed to add team member: %w", err)
		}
		member.User = *user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes a member. The owner can never be removed.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, actorID, userID uint64) error {
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := s.authorizeTeam(ctx, tx, teamID, actorID, policy.ActionRemoveTeamMember); err != nil {
			return err
		}

		target, err := tx.Teams().FindMember(ctx, teamID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("failed to find team member: %w", err)
		}
		if target.Role == models.TeamRoleOwner {
			return policy.ErrCannotRemoveOwner
		}

		if err := tx.Teams().RemoveMember(ctx, teamID, userID); err != nil {
			return fmt.Errorf("failed to remove team member: %w", err)
		}
		return nil
	})
}

// UpdateMemberRole changes a member's role. Only the owner may do this.
func (s *TeamService) UpdateMemberRole(ctx context.Context, teamID, actorID, userID uint64, role models.TeamRole) (*models.TeamMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role == models.TeamRoleOwner {
		return nil, policy.ErrCannotAssignOwner
	}

	var member *models.TeamMember
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := s.authorizeTeam(ctx, tx, teamID, actorID, policy.ActionChangeTeamRole); err != nil {
			return err
		}

		target, err := tx.Teams().FindMember(ctx, teamID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("failed to find team member: %w", err)
		}
		if target.Role == models.TeamRoleOwner {
			return policy.ErrTeamOwnerFixed
		}

		target.Role = role
		if err := tx.Teams().UpdateMember(ctx, target); err != nil {
			return fmt.Errorf("failed to update team member: %w", err)
		}
		member = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// ListInvitations lists pending invitations addressed to the caller
func (s *TeamService) ListInvitations(ctx context.Context, userID uint64) ([]models.TeamInvitation, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	invitations, err := s.store.Teams().ListPendingInvitations(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// RespondToInvitation accepts or rejects a pending invitation addressed to
// the caller. Accepting an invitation for a team the caller already belongs
// to leaves the existing membership untouched.
func (s *TeamService) RespondToInvitation(ctx context.Context, invitationID, userID uint64, accept bool) (*models.TeamInvitation, error) {
	var invitation *models.TeamInvitation
	fx := &effects{}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.Users().FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to find user: %w", err)
		}

		invitation, err = tx.Teams().FindPendingInvitation(ctx, invitationID, user.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvitationNotFound
			}
			return fmt.Errorf("failed to find invitation: %w", err)
		}

		if accept {
			_, err := tx.Teams().FindMember(ctx, invitation.TeamID, userID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				member := models.TeamMember{
					TeamID:   invitation.TeamID,
					UserID:   userID,
					Role:     invitation.Role,
					JoinedAt: time.Now(),
				}
				if err := tx.Teams().AddMembers(ctx, []models.TeamMember{member}); err != nil {
					return fmt.Errorf("failed to add team member: %w", err)
				}
			case err != nil:
				return fmt.Errorf("failed to find team member: %w", err)
			}
			invitation.Status = models.InvitationAccepted
		} else {
			invitation.Status = models.InvitationRejected
		}

		now := time.Now()
		invitation.RespondedAt = &now
		if err := tx.Teams().UpdateInvitation(ctx, invitation); err != nil {
			return fmt.Errorf("failed to update invitation: %w", err)
		}

		fx.signal(realtime.NotificationsTopic(userID), "team_invitations", realtime.ActionUpdate, invitation.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.flush(ctx, s.publisher)
	return invitation, nil
}

// authorizeTeam resolves the caller's team role and checks it against action
func (s *TeamService) authorizeTeam(ctx context.Context, store repository.Store, teamID, actorID uint64, action policy.TeamAction) (*models.Team, error) {
	team, role, err := s.resolver.TeamRole(ctx, store, teamID, actorID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageTeam(role, action); err != nil {
		recordDenial(err, string(action))
		return nil, err
	}
	return team, nil
}

func (s *TeamService) ownedTeam(ctx context.Context, teamID, actorID uint64) (*models.Team, error) {
	team, err := s.store.Teams().FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	if team.OwnerID != actorID {
		recordDenial(policy.ErrTeamOwnershipOnly, "team:update")
		return nil, policy.ErrTeamOwnershipOnly
	}
	return team, nil
}

// announceInvitations notifies invitees who already have an account and
// queues an e-mail for every invitation
func (s *TeamService) announceInvitations(ctx context.Context, tx repository.Store, fx *effects, team *models.Team, inviterID uint64, invitations []models.TeamInvitation) error {
	if len(invitations) == 0 {
		return nil
	}

	inviter, err := tx.Users().FindByID(ctx, inviterID)
	if err != nil {
		return fmt.Errorf("failed to find inviter: %w", err)
	}
	inviterName, teamName := displayName(inviter), team.Name

	for _, invitation := range invitations {
		user, err := tx.Users().FindByEmail(ctx, invitation.Email)
		switch {
		case err == nil:
			if err := fx.notify(ctx, tx, user.ID, models.NotificationTeamInvitation,
				fmt.Sprintf("%s invited you to join the team %q", inviterName, teamName), &invitation.ID); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to find invitee: %w", err)
		}

		to := invitation.Email
		fx.mail(func() error {
			return s.mailer.SendTeamInvitation(to, teamName, inviterName)
		})
	}
	return nil
}

func requireProjectOwner(ctx context.Context, store repository.Store, projectID, userID uint64) error {
	project, err := store.Projects().FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to find project: %w", err)
	}
	if project.OwnerID != userID {
		recordDenial(policy.ErrProjectOwnerOnly, "team:link_project")
		return policy.ErrProjectOwnerOnly
	}
	return nil
}
