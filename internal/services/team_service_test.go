package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/policy"
)

func newTeamService(env *testEnv) *TeamService {
	return NewTeamService(env.store, env.publisher, env.mailer)
}

func TestTeamService_CreateTeamMemberships(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newTeamService(env)

	owner := env.createUser(t, "owner@example.com")
	lead := env.createUser(t, "lead@example.com")
	dev := env.createUser(t, "dev@example.com")
	project := env.createProject(t, owner)

	team, err := svc.CreateTeam(ctx, owner.ID, CreateTeamInput{
		Name:         "  Platform ",
		ProjectID:    &project.ID,
		LeadID:       &lead.ID,
		MemberIDs:    []uint64{dev.ID, dev.ID, owner.ID, lead.ID},
		InviteEmails: []string{" dev@example.com ", "", "  ", "not-an-email", "Lead@Example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Platform", team.Name)
	require.NotNil(t, team.ProjectID)
	assert.Equal(t, project.ID, *team.ProjectID)

	var members []models.TeamMember
	require.NoError(t, env.db.Where("team_id = ?", team.ID).Order("user_id").Find(&members).Error)
	roles := map[uint64]models.TeamRole{}
	for _, m := range members {
		roles[m.UserID] = m.Role
	}
	assert.Equal(t, map[uint64]models.TeamRole{
		owner.ID: models.TeamRoleOwner,
		lead.ID:  models.TeamRoleAdmin,
		dev.ID:   models.TeamRoleMember,
	}, roles)

	var invitations []models.TeamInvitation
	require.NoError(t, env.db.Where("team_id = ?", team.ID).Order("id").Find(&invitations).Error)
	require.Len(t, invitations, 3)
	assert.Equal(t, "dev@example.com", invitations[0].Email)
	assert.Equal(t, "not-an-email", invitations[1].Email)
	assert.Equal(t, models.InvitationPending, invitations[2].Status)

	// Known addresses get an in-app notification as well as an e-mail
	assert.Equal(t, int64(2), env.count(t, &models.Notification{}, "type = ?", models.NotificationTeamInvitation))
	assert.Len(t, env.mailer.sent, 3)
}

func TestTeamService_ProjectLinkRequiresOwnership(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newTeamService(env)

	owner := env.createUser(t, "owner@example.com")
	other := env.createUser(t, "other@example.com")
	project := env.createProject(t, owner)
	env.addMember(t, project.ID, other, models.ProjectRoleManager)

	_, err := svc.CreateTeam(ctx, other.ID, CreateTeamInput{Name: "Rogue", ProjectID: &project.ID})
	assert.ErrorIs(t, err, policy.ErrProjectOwnerOnly)
	assert.Equal(t, int64(0), env.count(t, &models.Team{}, "name = ?", "Rogue"))

	team, err := svc.CreateTeam(ctx, other.ID, CreateTeamInput{Name: "Loose"})
	require.NoError(t, err)

	_, err = svc.UpdateTeam(ctx, team.ID, other.ID, UpdateTeamInput{ProjectID: &project.ID})
	assert.ErrorIs(t, err, policy.ErrProjectOwnerOnly)
}

func TestTeamService_OwnerOnlyUpdateAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newTeamService(env)

	owner := env.createUser(t, "owner@example.com")
	admin := env.createUser(t, "admin@example.com")

	team, err := svc.CreateTeam(ctx, owner.ID, CreateTeamInput{Name: "Core", LeadID: &admin.ID})
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.UpdateTeam(ctx, team.ID, admin.ID, UpdateTeamInput{Name: &name})
	assert.ErrorIs(t, err, policy.ErrTeamOwnershipOnly)
	assert.ErrorIs(t, svc.DeleteTeam(ctx, team.ID, admin.ID), policy.ErrTeamOwnershipOnly)

	updated, err := svc.UpdateTeam(ctx, team.ID, owner.ID, UpdateTeamInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	require.NoError(t, svc.DeleteTeam(ctx, team.ID, owner.ID))
	assert.Equal(t, int64(0), env.count(t, &models.TeamMember{}, "team_id = ?", team.ID))
}

func TestTeamService_MembershipManagement(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newTeamService(env)

	owner := env.createUser(t, "owner@example.com")
	admin := env.createUser(t, "admin@example.com")
	member := env.createUser(t, "member@example.com")
	newcomer := env.createUser(t, "newcomer@example.com")

	team, err := svc.CreateTeam(ctx, owner.ID, CreateTeamInput{Name: "Core", LeadID: &admin.ID, MemberIDs: []uint64{member.ID}})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, team.ID, member.ID, newcomer.ID, models.TeamRoleMember)
	assert.ErrorIs(t, err, policy.ErrTeamManagerOnly)

	added, err := svc.AddMember(ctx, team.ID, admin.ID, newcomer.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.TeamRoleMember, added.Role)

	_, err = svc.AddMember(ctx, team.ID, admin.ID, newcomer.ID, models.TeamRoleMember)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = svc.AddMember(ctx, team.ID, admin.ID, 9999, models.TeamRoleMember)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.UpdateMemberRole(ctx, team.ID, admin.ID, newcomer.ID, models.TeamRoleAdmin)
	assert.ErrorIs(t, err, policy.ErrTeamOwnerOnly)

	_, err = svc.UpdateMemberRole(ctx, team.ID, owner.ID, newcomer.ID, models.TeamRoleOwner)
	assert.ErrorIs(t, err, policy.ErrCannotAssignOwner)

	promoted, err := svc.UpdateMemberRole(ctx, team.ID, owner.ID, newcomer.ID, models.TeamRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.TeamRoleAdmin, promoted.Role)

	assert.ErrorIs(t, svc.RemoveMember(ctx, team.ID, admin.ID, owner.ID), policy.ErrCannotRemoveOwner)
	assert.ErrorIs(t, svc.RemoveMember(ctx, team.ID, admin.ID, 9999), ErrMemberNotFound)
	require.NoError(t, svc.RemoveMember(ctx, team.ID, admin.ID, member.ID))

	outsider := env.createUser(t, "outsider@example.com")
	_, err = svc.InviteMember(ctx, team.ID, outsider.ID, "friend@example.com", models.TeamRoleMember)
	assert.ErrorIs(t, err, policy.ErrNotTeamMember)

	_, err = svc.InviteMember(ctx, team.ID, admin.ID, "not an email", models.TeamRoleMember)
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestTeamService_AcceptInvitationOnce(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newTeamService(env)

	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "invitee@example.com")

	team, err := svc.CreateTeam(ctx, owner.ID, CreateTeamInput{Name: "Core"})
	require.NoError(t, err)

	invitation, err := svc.InviteMember(ctx, team.ID, owner.ID, "INVITEE@example.com", models.TeamRoleAdmin)
	require.NoError(t, err)

	pending, err := svc.ListInvitations(ctx, invitee.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Core", pending[0].Team.Name)

	accepted, err := svc.RespondToInvitation(ctx, invitation.ID, invitee.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, accepted.Status)
	assert.NotNil(t, accepted.RespondedAt)

	var member models.TeamMember
	require.NoError(t, env.db.Where("team_id = ? AND user_id = ?", team.ID, invitee.ID).First(&member).Error)
	assert.Equal(t, models.TeamRoleAdmin, member.Role)

	// A second answer finds no pending invitation and leaves one membership row
	_, err = svc.RespondToInvitation(ctx, invitation.ID, invitee.ID, true)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
	assert.Equal(t, int64(1), env.count(t, &models.TeamMember{}, "team_id = ? AND user_id = ?", team.ID, invitee.ID))

	// Accepting a second invitation to a team already joined does not duplicate the row
	again, err := svc.InviteMember(ctx, team.ID, owner.ID, "invitee@example.com", models.TeamRoleMember)
	require.NoError(t, err)
	_, err = svc.RespondToInvitation(ctx, again.ID, invitee.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.count(t, &models.TeamMember{}, "team_id = ? AND user_id = ?", team.ID, invitee.ID))
	require.NoError(t, env.db.Where("team_id = ? AND user_id = ?", team.ID, invitee.ID).First(&member).Error)
	assert.Equal(t, models.TeamRoleAdmin, member.Role)
}

func TestTeamService_RejectAndForeignInvitation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := newTeamService(env)

	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	eavesdropper := env.createUser(t, "eve@example.com")

	team, err := svc.CreateTeam(ctx, owner.ID, CreateTeamInput{Name: "Core"})
	require.NoError(t, err)
	invitation, err := svc.InviteMember(ctx, team.ID, owner.ID, "invitee@example.com", "")
	require.NoError(t, err)

	_, err = svc.RespondToInvitation(ctx, invitation.ID, eavesdropper.ID, true)
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	rejected, err := svc.RespondToInvitation(ctx, invitation.ID, invitee.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationRejected, rejected.Status)
	assert.Equal(t, int64(0), env.count(t, &models.TeamMember{}, "team_id = ? AND user_id = ?", team.ID, invitee.ID))
}
