package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/services"
	"github.com/yukikurage/tasko/internal/utils"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
	}
}

// CreateProject creates a project owned by the caller
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	type CreateProjectRequest struct {
		Name        string `json:"name" binding:"required,max=255"`
		Description string `json:"description"`
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), userID, services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project, models.ProjectRoleAdmin))
}

// ListProjects returns the projects the caller owns or has joined
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	projects, err := h.projectService.ListProjects(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": dto.ToProjectList(projects)})
}

// GetProject returns a project with its members and the caller's role
func (h *ProjectHandler) GetProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	detail, err := h.projectService.GetProject(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDetailDTO(detail))
}

// UpdateProject changes name, description or status
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	type UpdateProjectRequest struct {
		Name        *string               `json:"name" binding:"omitempty,max=255"`
		Description *string               `json:"description"`
		Status      *models.ProjectStatus `json:"status"`
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), projectID, userID, services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*project, ""))
}

// DeleteProject removes a project and its tasks. Owner only.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), projectID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

func (h *ProjectHandler) ListMembers(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	members, err := h.projectService.ListMembers(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": dto.ToProjectMembers(members)})
}

// InviteMember adds a pending membership for an existing user
func (h *ProjectHandler) InviteMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	type InviteMemberRequest struct {
		Email string             `json:"email" binding:"required"`
		Role  models.ProjectRole `json:"role" binding:"required"`
	}

	var req InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.projectService.InviteMember(c.Request.Context(), projectID, userID, req.Email, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectMemberDTO(*member))
}

func (h *ProjectHandler) UpdateMemberRole(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "user_id", "user ID")
	if !ok {
		return
	}

	type UpdateRoleRequest struct {
		Role models.ProjectRole `json:"role" binding:"required"`
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.projectService.UpdateMemberRole(c.Request.Context(), projectID, userID, memberID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectMemberDTO(*member))
}

// RemoveMember removes a member; members may also remove themselves
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "user_id", "user ID")
	if !ok {
		return
	}

	if err := h.projectService.RemoveMember(c.Request.Context(), projectID, userID, memberID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// RespondToInvitation accepts or rejects the caller's pending membership
func (h *ProjectHandler) RespondToInvitation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	accept, ok := bindInvitationAnswer(c)
	if !ok {
		return
	}

	if err := h.projectService.RespondToInvitation(c.Request.Context(), projectID, userID, accept); err != nil {
		respondError(c, err)
		return
	}

	status := models.InvitationRejected
	if accept {
		status = models.InvitationAccepted
	}
	c.JSON(http.StatusOK, gin.H{"project_id": projectID, "status": status})
}

// Report returns task statistics for a project
func (h *ProjectHandler) Report(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	report, err := h.projectService.Report(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectReportDTO(report))
}

// Activities returns the project's activity log, newest first
func (h *ProjectHandler) Activities(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id", "project ID")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	activities, total, err := h.projectService.Activities(c.Request.Context(), projectID, userID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToActivityList(activities, params.Page, params.Limit, total))
}

// bindInvitationAnswer reads {"status": "accepted"|"rejected"}.
func bindInvitationAnswer(c *gin.Context) (bool, bool) {
	type RespondRequest struct {
		Status models.InvitationStatus `json:"status" binding:"required"`
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return false, false
	}

	switch req.Status {
	case models.InvitationAccepted:
		return true, true
	case models.InvitationRejected:
		return false, true
	default:
		apierrors.BadRequest(c, "Status must be accepted or rejected")
		return false, false
	}
}
