package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/policy"
)

func newProjectService(env *testEnv) *ProjectService {
	return NewProjectService(env.store, env.publisher, env.mailer)
}

func TestProjectService_CreateMakesOwnerAdmin(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newProjectService(env)

	owner := env.createUser(t, "owner@example.com")

	_, err := svc.CreateProject(ctx, owner.ID, CreateProjectInput{Name: "   "})
	assert.ErrorIs(t, err, ErrNameRequired)

	project, err := svc.CreateProject(ctx, owner.ID, CreateProjectInput{Name: "Launch", Description: "Q3"})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPlanning, project.Status)
	assert.Equal(t, owner.ID, project.Owner.ID)

	var member models.ProjectMember
	require.NoError(t, env.db.Where("project_id = ? AND user_id = ?", project.ID, owner.ID).First(&member).Error)
	assert.Equal(t, models.ProjectRoleAdmin, member.Role)
	assert.Equal(t, models.MembershipAccepted, member.Status)

	projects, err := svc.ListProjects(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, models.ProjectRoleAdmin, projects[0].Role)
}

func TestProjectService_InviteAndRespond(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newProjectService(env)

	owner := env.createUser(t, "owner@example.com")
	manager := env.createUser(t, "manager@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	declined := env.createUser(t, "declined@example.com")
	project := env.createProject(t, owner)
	env.addMember(t, project.ID, manager, models.ProjectRoleManager)

	_, err := svc.InviteMember(ctx, project.ID, manager.ID, "invitee@example.com", models.ProjectRoleAdmin)
	assert.ErrorIs(t, err, policy.ErrGrantAdmin)

	_, err = svc.InviteMember(ctx, project.ID, manager.ID, "nobody@example.com", models.ProjectRoleMember)
	assert.ErrorIs(t, err, ErrUserNotFound)

	member, err := svc.InviteMember(ctx, project.ID, manager.ID, "invitee@example.com", models.ProjectRoleMember)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipPending, member.Status)

	_, err = svc.InviteMember(ctx, project.ID, manager.ID, "invitee@example.com", models.ProjectRoleViewer)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	assert.Equal(t, int64(1), env.count(t, &models.Notification{}, "user_id = ? AND type = ?", invitee.ID, models.NotificationProjectInvitation))
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "invitee@example.com", env.mailer.sent[0].To)

	invitations, err := svc.ListInvitations(ctx, invitee.ID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)

	_, err = svc.GetProject(ctx, project.ID, invitee.ID)
	assert.ErrorIs(t, err, policy.ErrNotProjectMember)

	require.NoError(t, svc.RespondToInvitation(ctx, project.ID, invitee.ID, true))
	assert.ErrorIs(t, svc.RespondToInvitation(ctx, project.ID, invitee.ID, true), ErrInvitationNotFound)

	detail, err := svc.GetProject(ctx, project.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectRoleMember, detail.Role)
	assert.Len(t, detail.Members, 3)
	assert.Equal(t, int64(1), env.count(t, &models.Activity{}, "project_id = ? AND type = ?", project.ID, models.ActivityMemberJoined))

	_, err = svc.InviteMember(ctx, project.ID, owner.ID, "declined@example.com", models.ProjectRoleViewer)
	require.NoError(t, err)
	require.NoError(t, svc.RespondToInvitation(ctx, project.ID, declined.ID, false))
	assert.Equal(t, int64(0), env.count(t, &models.ProjectMember{}, "project_id = ? AND user_id = ?", project.ID, declined.ID))
}

func TestProjectService_RoleChangesAndRemoval(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newProjectService(env)

	owner := env.createUser(t, "owner@example.com")
	manager := env.createUser(t, "manager@example.com")
	member := env.createUser(t, "member@example.com")
	project := env.createProject(t, owner)
	env.addMember(t, project.ID, manager, models.ProjectRoleManager)
	env.addMember(t, project.ID, member, models.ProjectRoleMember)

	_, err := svc.UpdateMemberRole(ctx, project.ID, manager.ID, member.ID, models.ProjectRoleTechLead)
	assert.ErrorIs(t, err, policy.ErrInsufficientRole)

	_, err = svc.UpdateMemberRole(ctx, project.ID, owner.ID, owner.ID, models.ProjectRoleViewer)
	assert.ErrorIs(t, err, policy.ErrProjectOwnerFixed)

	_, err = svc.UpdateMemberRole(ctx, project.ID, owner.ID, member.ID, "boss")
	assert.ErrorIs(t, err, ErrInvalidRole)

	updated, err := svc.UpdateMemberRole(ctx, project.ID, owner.ID, member.ID, models.ProjectRoleTechLead)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectRoleTechLead, updated.Role)

	assert.ErrorIs(t, svc.RemoveMember(ctx, project.ID, manager.ID, member.ID), policy.ErrInsufficientRole)
	assert.ErrorIs(t, svc.RemoveMember(ctx, project.ID, owner.ID, owner.ID), policy.ErrProjectOwnerFixed)
	require.NoError(t, svc.RemoveMember(ctx, project.ID, owner.ID, member.ID))

	// Members may leave on their own
	require.NoError(t, svc.RemoveMember(ctx, project.ID, manager.ID, manager.ID))
	assert.Equal(t, int64(1), env.count(t, &models.ProjectMember{}, "project_id = ?", project.ID))
}

func TestProjectService_UpdateAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newProjectService(env)
	tasks := newTaskService(env)

	owner := env.createUser(t, "owner@example.com")
	manager := env.createUser(t, "manager@example.com")
	viewer := env.createUser(t, "viewer@example.com")
	project := env.createProject(t, owner)
	env.addMember(t, project.ID, manager, models.ProjectRoleManager)
	env.addMember(t, project.ID, viewer, models.ProjectRoleViewer)

	active := models.ProjectStatusActive
	updated, err := svc.UpdateProject(ctx, project.ID, manager.ID, UpdateProjectInput{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusActive, updated.Status)

	bogus := models.ProjectStatus("paused")
	_, err = svc.UpdateProject(ctx, project.ID, manager.ID, UpdateProjectInput{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidProjectStatus)

	_, err = svc.UpdateProject(ctx, project.ID, viewer.ID, UpdateProjectInput{Status: &active})
	assert.ErrorIs(t, err, policy.ErrInsufficientRole)

	_, err = tasks.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ActorID: owner.ID, Title: "Doomed"})
	require.NoError(t, err)
	team := env.createTeam(t, owner, &project.ID)

	assert.ErrorIs(t, svc.DeleteProject(ctx, project.ID, manager.ID), policy.ErrDeleteProject)
	require.NoError(t, svc.DeleteProject(ctx, project.ID, owner.ID))

	_, err = svc.GetProject(ctx, project.ID, owner.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Equal(t, int64(0), env.count(t, &models.Task{}, "project_id = ?", project.ID))

	var survivor models.Team
	require.NoError(t, env.db.First(&survivor, team.ID).Error)
	assert.Nil(t, survivor.ProjectID)
}

func TestProjectService_Report(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newProjectService(env)
	tasks := newTaskService(env)

	owner := env.createUser(t, "owner@example.com")
	dev := env.createUser(t, "dev@example.com")
	project := env.createProject(t, owner)
	env.addMember(t, project.ID, dev, models.ProjectRoleMember)

	overdue := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	inputs := []CreateTaskInput{
		{Title: "a", AssignedTo: &dev.ID, DueDate: &overdue, Priority: models.TaskPriorityHigh},
		{Title: "b", AssignedTo: &dev.ID},
		{Title: "c", Status: models.TaskStatusCompleted, DueDate: &overdue},
		{Title: "d"},
	}
	for _, in := range inputs {
		in.ProjectID, in.ActorID = project.ID, owner.ID
		_, err := tasks.CreateTask(ctx, in)
		require.NoError(t, err)
	}

	report, err := svc.Report(ctx, project.ID, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), report.Total)
	assert.Equal(t, int64(3), report.ByStatus[models.TaskStatusPending])
	assert.Equal(t, int64(1), report.ByPriority[models.TaskPriorityHigh])
	assert.Equal(t, int64(1), report.Overdue)
	assert.Equal(t, int64(2), report.OpenByAssign[dev.ID])
	assert.Equal(t, int64(1), report.Unassigned)
	assert.InDelta(t, 0.25, report.CompletionRate, 0.0001)

	activities, total, err := svc.Activities(ctx, project.ID, dev.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, activities, 2)
	assert.Equal(t, "Created task \"d\"", activities[0].Message)
}
