package policy

import "github.com/yukikurage/tasko/internal/models"

// TeamAction identifies a team membership mutation.
type TeamAction string

const (
	ActionInviteTeamMember TeamAction = "team:invite"
	ActionAddTeamMember    TeamAction = "team:add_member"
	ActionRemoveTeamMember TeamAction = "team:remove_member"
	ActionChangeTeamRole   TeamAction = "team:change_role"
)

var (
	ErrNotTeamMember     = deny("You are not a member of this team")
	ErrTeamManagerOnly   = deny("Only team owners and admins can manage members")
	ErrTeamOwnerOnly     = deny("Only the team owner can change member roles")
	ErrTeamOwnershipOnly = deny("Only the team owner can modify this team")
	ErrProjectOwnerOnly  = deny("Only the project owner can link teams to this project")
	ErrCannotRemoveOwner = deny("The team owner cannot be removed")
	ErrCannotAssignOwner = deny("The owner role cannot be assigned")
	ErrTeamOwnerFixed    = deny("The team owner's role cannot be changed")
	ErrProjectOwnerFixed = deny("The project owner's membership cannot be changed")
)

// CanManageTeam checks a caller's team role against a membership action.
// An empty role means the caller has no membership row.
func CanManageTeam(role models.TeamRole, action TeamAction) error {
	if !role.Valid() {
		return ErrNotTeamMember
	}

	switch action {
	case ActionInviteTeamMember, ActionAddTeamMember, ActionRemoveTeamMember:
		if role == models.TeamRoleOwner || role == models.TeamRoleAdmin {
			return nil
		}
		return ErrTeamManagerOnly
	case ActionChangeTeamRole:
		if role == models.TeamRoleOwner {
			return nil
		}
		return ErrTeamOwnerOnly
	}

	return ErrTeamManagerOnly
}
