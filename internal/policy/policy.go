// Package policy decides whether a project or team role may perform an
// action. It performs no data access: callers resolve roles and task state
// from the database on every request and pass them in.
package policy

import (
	"fmt"

	"github.com/yukikurage/tasko/internal/models"
)

// Action identifies a project-scoped mutation or read.
type Action string

const (
	ActionViewProject   Action = "project:view"
	ActionUpdateProject Action = "project:update"
	ActionManageMembers Action = "project:manage_members"
	ActionChangeRoles   Action = "project:change_roles"
	ActionCreateTask    Action = "task:create"
	ActionUpdateTask    Action = "task:update"
	ActionDeleteTask    Action = "task:delete"
)

// Denial is returned when a role may not perform an action. Its message is
// meant to be shown to the user as-is.
type Denial struct {
	msg string
}

func (d *Denial) Error() string {
	return d.msg
}

func deny(msg string) *Denial {
	return &Denial{msg: msg}
}

var (
	ErrNotProjectMember  = deny("You are not a member of this project")
	ErrInsufficientRole  = deny("You do not have permission to perform this action")
	ErrViewerReadOnly    = deny("Viewers cannot create or modify tasks")
	ErrMemberSelfAssign  = deny("Members can only assign tasks to themselves")
	ErrMemberNotAssignee = deny("Members can only update tasks assigned to them")
	ErrTechLeadTeam      = deny("Tech leads can only manage tasks belonging to their teams")
	ErrTechLeadAssignee  = deny("Tech leads can only assign tasks to members of their teams")
	ErrDeleteForbidden   = deny("Only admins and managers can delete tasks")
	ErrDeleteProject     = deny("Only the project owner can delete this project")
	ErrGrantAdmin        = deny("Only admins can grant the admin role")
	ErrNotParticipant    = deny("You are not a participant in this conversation")
)

// TaskState is the persisted state of a task that the policy cares about.
type TaskState struct {
	AssignedTo *uint64
	TeamID     *uint64
}

// TaskContext carries everything needed to authorize a task mutation.
type TaskContext struct {
	ActorID uint64
	// ActorTeamIDs are the teams the actor belongs to.
	ActorTeamIDs []uint64

	// Current is the task before the mutation; nil on create.
	Current *TaskState

	// Assignee is the requested assignee, nil when the assignee is not being set.
	Assignee *uint64
	// AssigneeTeamIDs are the teams the requested assignee belongs to.
	AssigneeTeamIDs []uint64
	// ClearAssignee is set when an update removes the assignee.
	ClearAssignee bool

	// TeamID is the requested team, nil when the team is not being set.
	TeamID *uint64
	// ClearTeam is set when an update removes the task from its team.
	ClearTeam bool
}

// CanPerform returns nil when role may perform action in the given context,
// otherwise a *Denial.
func CanPerform(role models.ProjectRole, action Action, ctx TaskContext) error {
	if !role.Valid() {
		return ErrNotProjectMember
	}

	switch action {
	case ActionViewProject:
		return nil
	case ActionUpdateProject, ActionManageMembers:
		if role == models.ProjectRoleAdmin || role == models.ProjectRoleManager {
			return nil
		}
		return ErrInsufficientRole
	case ActionChangeRoles:
		if role == models.ProjectRoleAdmin {
			return nil
		}
		return ErrInsufficientRole
	case ActionCreateTask:
		return canCreateTask(role, ctx)
	case ActionUpdateTask:
		return canUpdateTask(role, ctx)
	case ActionDeleteTask:
		if role == models.ProjectRoleAdmin || role == models.ProjectRoleManager {
			return nil
		}
		return ErrDeleteForbidden
	}

	return ErrInsufficientRole
}

func canCreateTask(role models.ProjectRole, ctx TaskContext) error {
	switch role {
	case models.ProjectRoleAdmin, models.ProjectRoleManager:
		return nil
	case models.ProjectRoleTechLead:
		if ctx.TeamID == nil {
			return ErrTechLeadTeam
		}
		return checkTechLeadScope(ctx)
	case models.ProjectRoleMember:
		if ctx.Assignee != nil && *ctx.Assignee != ctx.ActorID {
			return ErrMemberSelfAssign
		}
		return nil
	}
	return ErrViewerReadOnly
}

func canUpdateTask(role models.ProjectRole, ctx TaskContext) error {
	if ctx.Current == nil {
		return fmt.Errorf("policy: update requires the current task state")
	}

	switch role {
	case models.ProjectRoleAdmin, models.ProjectRoleManager:
		return nil
	case models.ProjectRoleTechLead:
		if ctx.Current.TeamID == nil || !contains(ctx.ActorTeamIDs, *ctx.Current.TeamID) {
			return ErrTechLeadTeam
		}
		if ctx.ClearTeam {
			return ErrTechLeadTeam
		}
		return checkTechLeadScope(ctx)
	case models.ProjectRoleMember:
		if ctx.Current.AssignedTo == nil || *ctx.Current.AssignedTo != ctx.ActorID {
			return ErrMemberNotAssignee
		}
		if ctx.ClearAssignee {
			return ErrMemberSelfAssign
		}
		if ctx.Assignee != nil && *ctx.Assignee != ctx.ActorID {
			return ErrMemberSelfAssign
		}
		return nil
	}
	return ErrViewerReadOnly
}

func checkTechLeadScope(ctx TaskContext) error {
	if ctx.TeamID != nil && !contains(ctx.ActorTeamIDs, *ctx.TeamID) {
		return ErrTechLeadTeam
	}
	if ctx.Assignee != nil && *ctx.Assignee != ctx.ActorID && !intersects(ctx.ActorTeamIDs, ctx.AssigneeTeamIDs) {
		return ErrTechLeadAssignee
	}
	return nil
}

func contains(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func intersects(a, b []uint64) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
