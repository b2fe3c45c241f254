package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/services"
)

type TeamHandler struct {
	teamService    *services.TeamService
	projectService *services.ProjectService
}

func NewTeamHandler(teamService *services.TeamService, projectService *services.ProjectService) *TeamHandler {
	return &TeamHandler{
		teamService:    teamService,
		projectService: projectService,
	}
}

// CreateTeam creates a team owned by the caller, optionally linked to a
// project the caller owns
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	type CreateTeamRequest struct {
		Name         string   `json:"name" binding:"required,max=255"`
		Description  string   `json:"description"`
		ProjectID    *uint64  `json:"project_id"`
		LeadID       *uint64  `json:"lead_id"`
		MemberIDs    []uint64 `json:"member_ids"`
		InviteEmails []string `json:"invite_emails"`
	}

	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	team, err := h.teamService.CreateTeam(c.Request.Context(), userID, services.CreateTeamInput{
		Name:         req.Name,
		Description:  req.Description,
		ProjectID:    req.ProjectID,
		LeadID:       req.LeadID,
		MemberIDs:    req.MemberIDs,
		InviteEmails: req.InviteEmails,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTeamDTO(*team, models.TeamRoleOwner))
}

// ListTeams returns the teams the caller belongs to
func (h *TeamHandler) ListTeams(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	memberships, err := h.teamService.ListTeams(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"teams": dto.ToTeamList(memberships)})
}

func (h *TeamHandler) GetTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id", "team ID")
	if !ok {
		return
	}

	detail, err := h.teamService.GetTeam(c.Request.Context(), teamID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamDetailDTO(detail))
}

// UpdateTeam changes team fields. project_id: null unlinks the project.
func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id", "team ID")
	if !ok {
		return
	}

	body, ok := bindPatch(c)
	if !ok {
		return
	}

	var input services.UpdateTeamInput
	var err error
	if input.Name, err = body.str("name"); err != nil {
		respondError(c, err)
		return
	}
	if input.Description, err = body.str("description"); err != nil {
		respondError(c, err)
		return
	}
	if input.ProjectID, err = body.id("project_id"); err != nil {
		respondError(c, err)
		return
	}
	input.ClearProject = body.isNull("project_id")

	team, err := h.teamService.UpdateTeam(c.Request.Context(), teamID, userID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamDTO(*team, models.TeamRoleOwner))
}

func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id", "team ID")
	if !ok {
		return
	}

	if err := h.teamService.DeleteTeam(c.Request.Context(), teamID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Team deleted successfully"})
}

// InviteMember invites an e-mail address to the team
func (h *TeamHandler) InviteMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id", "team ID")
	if !ok {
		return
	}

	type InviteRequest struct {
		Email string          `json:"email" binding:"required"`
		Role  models.TeamRole `json:"role"`
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	invitation, err := h.teamService.InviteMember(c.Request.Context(), teamID, userID, req.Email, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTeamInvitationDTO(*invitation))
}

func (h *TeamHandler) AddMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id", "team ID")
	if !ok {
		return
	}

	type AddMemberRequest struct {
		UserID uint64          `json:"user_id" binding:"required"`
		Role   models.TeamRole `json:"role"`
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.teamService.AddMember(c.Request.Context(), teamID, userID, req.UserID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTeamMemberDTO(*member))
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id", "team ID")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "user_id", "user ID")
	if !ok {
		return
	}

	if err := h.teamService.RemoveMember(c.Request.Context(), teamID, userID, memberID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

func (h *TeamHandler) UpdateMemberRole(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id", "team ID")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "user_id", "user ID")
	if !ok {
		return
	}

	type UpdateRoleRequest struct {
		Role models.TeamRole `json:"role" binding:"required"`
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.teamService.UpdateMemberRole(c.Request.Context(), teamID, userID, memberID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamMemberDTO(*member))
}

// ListInvitations returns the caller's pending team invitations and
// pending project memberships
func (h *TeamHandler) ListInvitations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	teamInvitations, err := h.teamService.ListInvitations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	projectInvitations, err := h.projectService.ListInvitations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"teams":    dto.ToTeamInvitations(teamInvitations),
		"projects": dto.ToProjectInvitations(projectInvitations),
	})
}

// RespondToInvitation accepts or rejects a team invitation addressed to the
// caller's e-mail
func (h *TeamHandler) RespondToInvitation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	invitationID, ok := pathID(c, "id", "invitation ID")
	if !ok {
		return
	}

	accept, ok := bindInvitationAnswer(c)
	if !ok {
		return
	}

	invitation, err := h.teamService.RespondToInvitation(c.Request.Context(), invitationID, userID, accept)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamInvitationDTO(*invitation))
}
