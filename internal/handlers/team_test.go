package handlers

import (
	"net/http"

	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/models"
)

func (s *APITestSuite) createTeam(owner *models.User, body map[string]interface{}) dto.TeamDTO {
	w := s.request(http.MethodPost, "/api/teams", body, owner)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var team dto.TeamDTO
	s.decode(w, &team)
	return team
}

func (s *APITestSuite) TestCreateTeam_WithMembers() {
	owner := s.createUser("owner@example.com")
	lead := s.createUser("lead@example.com")
	member := s.createUser("member@example.com")

	team := s.createTeam(owner, map[string]interface{}{
		"name":       "Platform",
		"lead_id":    lead.ID,
		"member_ids": []uint64{member.ID},
	})
	s.Equal(models.TeamRoleOwner, team.YourRole)

	w := s.request(http.MethodGet, path("/api/teams/%d", team.ID), nil, member)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var detail dto.TeamDetailDTO
	s.decode(w, &detail)
	s.Len(detail.Members, 3)

	roles := map[uint64]models.TeamRole{}
	for _, m := range detail.Members {
		roles[m.UserID] = m.Role
	}
	s.Equal(models.TeamRoleOwner, roles[owner.ID])
	s.Equal(models.TeamRoleAdmin, roles[lead.ID])
	s.Equal(models.TeamRoleMember, roles[member.ID])
}

func (s *APITestSuite) TestCreateTeam_UnknownMember() {
	owner := s.createUser("owner@example.com")

	w := s.request(http.MethodPost, "/api/teams", map[string]interface{}{
		"name":       "Platform",
		"member_ids": []uint64{9999},
	}, owner)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestTeamInvitation_Flow() {
	owner := s.createUser("owner@example.com")
	invitee := s.createUser("invitee@example.com")
	team := s.createTeam(owner, map[string]interface{}{"name": "Platform"})

	w := s.request(http.MethodPost, path("/api/teams/%d/invitations", team.ID), map[string]string{
		"email": "invitee@example.com",
	}, owner)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var invitation dto.TeamInvitationDTO
	s.decode(w, &invitation)
	s.Equal(models.InvitationPending, invitation.Status)
	s.Equal(models.TeamRoleMember, invitation.Role)

	w = s.request(http.MethodGet, "/api/notifications/unread-count", nil, invitee)
	s.Require().Equal(http.StatusOK, w.Code)

	var count struct {
		Count int64 `json:"count"`
	}
	s.decode(w, &count)
	s.Equal(int64(1), count.Count)

	w = s.request(http.MethodGet, "/api/invitations", nil, invitee)
	s.Require().Equal(http.StatusOK, w.Code)

	var pending struct {
		Teams    []dto.TeamInvitationDTO    `json:"teams"`
		Projects []dto.ProjectInvitationDTO `json:"projects"`
	}
	s.decode(w, &pending)
	s.Require().Len(pending.Teams, 1)
	s.Equal(invitation.ID, pending.Teams[0].ID)
	s.Equal("Platform", pending.Teams[0].TeamName)

	w = s.request(http.MethodPost, path("/api/invitations/%d/respond", invitation.ID), map[string]string{
		"status": "accepted",
	}, invitee)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.decode(w, &invitation)
	s.Equal(models.InvitationAccepted, invitation.Status)
	s.NotNil(invitation.RespondedAt)

	w = s.request(http.MethodGet, "/api/teams", nil, invitee)
	s.Require().Equal(http.StatusOK, w.Code)

	var teams struct {
		Teams []dto.TeamDTO `json:"teams"`
	}
	s.decode(w, &teams)
	s.Require().Len(teams.Teams, 1)
	s.Equal(models.TeamRoleMember, teams.Teams[0].YourRole)

	// Plain members cannot invite
	w = s.request(http.MethodPost, path("/api/teams/%d/invitations", team.ID), map[string]string{
		"email": "someone@example.com",
	}, invitee)
	s.Require().Equal(http.StatusForbidden, w.Code)

	var apiErr apierrors.APIError
	s.decode(w, &apiErr)
	s.Equal("Only team owners and admins can manage members", apiErr.Message)
}

func (s *APITestSuite) TestTeamInvitation_OtherUserCannotRespond() {
	owner := s.createUser("owner@example.com")
	s.createUser("invitee@example.com")
	stranger := s.createUser("stranger@example.com")
	team := s.createTeam(owner, map[string]interface{}{"name": "Platform"})

	w := s.request(http.MethodPost, path("/api/teams/%d/invitations", team.ID), map[string]string{
		"email": "invitee@example.com",
	}, owner)
	s.Require().Equal(http.StatusCreated, w.Code)

	var invitation dto.TeamInvitationDTO
	s.decode(w, &invitation)

	w = s.request(http.MethodPost, path("/api/invitations/%d/respond", invitation.ID), map[string]string{
		"status": "accepted",
	}, stranger)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestTeamMembers_RoleChangesAndRemoval() {
	owner := s.createUser("owner@example.com")
	member := s.createUser("member@example.com")
	team := s.createTeam(owner, map[string]interface{}{"name": "Platform"})

	w := s.request(http.MethodPost, path("/api/teams/%d/members", team.ID), map[string]interface{}{
		"user_id": member.ID,
	}, owner)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.request(http.MethodPatch, path("/api/teams/%d/members/%d", team.ID, member.ID), map[string]string{
		"role": "admin",
	}, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var updated dto.TeamMemberDTO
	s.decode(w, &updated)
	s.Equal(models.TeamRoleAdmin, updated.Role)

	w = s.request(http.MethodDelete, path("/api/teams/%d/members/%d", team.ID, owner.ID), nil, member)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodDelete, path("/api/teams/%d/members/%d", team.ID, member.ID), nil, owner)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, path("/api/teams/%d", team.ID), nil, member)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APITestSuite) TestUpdateTeam_LinksProject() {
	owner := s.createUser("owner@example.com")
	projectID := s.createProject(owner, "Launch")
	team := s.createTeam(owner, map[string]interface{}{"name": "Platform"})

	w := s.request(http.MethodPatch, path("/api/teams/%d", team.ID), map[string]interface{}{
		"project_id": projectID,
	}, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var linked dto.TeamDTO
	s.decode(w, &linked)
	s.Require().NotNil(linked.ProjectID)
	s.Equal(projectID, *linked.ProjectID)

	w = s.request(http.MethodPatch, path("/api/teams/%d", team.ID), map[string]interface{}{
		"project_id": nil,
	}, owner)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.decode(w, &linked)
	s.Nil(linked.ProjectID)
}
