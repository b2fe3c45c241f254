package dto

import (
	"time"

	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/services"
)

type TeamDTO struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	OwnerID     uint64          `json:"owner_id"`
	ProjectID   *uint64         `json:"project_id"`
	YourRole    models.TeamRole `json:"your_role,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type TeamMemberDTO struct {
	UserID   uint64          `json:"user_id"`
	Role     models.TeamRole `json:"role"`
	JoinedAt time.Time       `json:"joined_at"`
	User     *UserDTO        `json:"user,omitempty"`
}

type TeamDetailDTO struct {
	TeamDTO
	Members []TeamMemberDTO `json:"members"`
}

type TeamInvitationDTO struct {
	ID          uint64                  `json:"id"`
	TeamID      uint64                  `json:"team_id"`
	TeamName    string                  `json:"team_name,omitempty"`
	Email       string                  `json:"email"`
	Role        models.TeamRole         `json:"role"`
	Status      models.InvitationStatus `json:"status"`
	InvitedBy   uint64                  `json:"invited_by"`
	RespondedAt *time.Time              `json:"responded_at"`
	CreatedAt   time.Time               `json:"created_at"`
}

func ToTeamDTO(team models.Team, role models.TeamRole) TeamDTO {
	return TeamDTO{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		OwnerID:     team.OwnerID,
		ProjectID:   team.ProjectID,
		YourRole:    role,
		CreatedAt:   team.CreatedAt,
		UpdatedAt:   team.UpdatedAt,
	}
}

// ToTeamList converts the caller's memberships into teams with roles
func ToTeamList(memberships []models.TeamMember) []TeamDTO {
	out := make([]TeamDTO, 0, len(memberships))
	for _, m := range memberships {
		out = append(out, ToTeamDTO(m.Team, m.Role))
	}
	return out
}

func ToTeamMemberDTO(member models.TeamMember) TeamMemberDTO {
	return TeamMemberDTO{
		UserID:   member.UserID,
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
		User:     userRef(&member.User),
	}
}

func ToTeamDetailDTO(detail *services.TeamDetail) TeamDetailDTO {
	members := make([]TeamMemberDTO, 0, len(detail.Members))
	for _, m := range detail.Members {
		members = append(members, ToTeamMemberDTO(m))
	}
	return TeamDetailDTO{
		TeamDTO: ToTeamDTO(*detail.Team, detail.Role),
		Members: members,
	}
}

func ToTeamInvitationDTO(invitation models.TeamInvitation) TeamInvitationDTO {
	return TeamInvitationDTO{
		ID:          invitation.ID,
		TeamID:      invitation.TeamID,
		TeamName:    invitation.Team.Name,
		Email:       invitation.Email,
		Role:        invitation.Role,
		Status:      invitation.Status,
		InvitedBy:   invitation.InvitedBy,
		RespondedAt: invitation.RespondedAt,
		CreatedAt:   invitation.CreatedAt,
	}
}

func ToTeamInvitations(invitations []models.TeamInvitation) []TeamInvitationDTO {
	out := make([]TeamInvitationDTO, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, ToTeamInvitationDTO(inv))
	}
	return out
}
