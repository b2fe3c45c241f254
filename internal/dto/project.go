package dto

import (
	"time"

	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/services"
)

type ProjectDTO struct {
	ID          uint64               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status"`
	OwnerID     uint64               `json:"owner_id"`
	Owner       *UserDTO             `json:"owner,omitempty"`
	YourRole    models.ProjectRole   `json:"your_role,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type ProjectMemberDTO struct {
	UserID    uint64                  `json:"user_id"`
	Role      models.ProjectRole      `json:"role"`
	Status    models.MembershipStatus `json:"status"`
	InvitedBy *uint64                 `json:"invited_by,omitempty"`
	JoinedAt  *time.Time              `json:"joined_at"`
	User      *UserDTO                `json:"user,omitempty"`
}

// ProjectDetailDTO is a project with its memberships
type ProjectDetailDTO struct {
	ProjectDTO
	Members []ProjectMemberDTO `json:"members"`
}

// ProjectInvitationDTO is a pending project membership seen by the invitee
type ProjectInvitationDTO struct {
	Project   ProjectDTO         `json:"project"`
	Role      models.ProjectRole `json:"role"`
	InvitedBy *uint64            `json:"invited_by,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type ProjectReportDTO struct {
	Total          int64                         `json:"total"`
	ByStatus       map[models.TaskStatus]int64   `json:"by_status"`
	ByPriority     map[models.TaskPriority]int64 `json:"by_priority"`
	Overdue        int64                         `json:"overdue"`
	Unassigned     int64                         `json:"unassigned"`
	OpenByAssignee map[uint64]int64              `json:"open_by_assignee"`
	CompletionRate float64                       `json:"completion_rate"`
}

type ActivityDTO struct {
	ID        uint64                 `json:"id"`
	ProjectID uint64                 `json:"project_id"`
	TaskID    *uint64                `json:"task_id"`
	Type      models.ActivityType    `json:"type"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	User      *UserDTO               `json:"user,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type ActivityListResponse struct {
	Activities []ActivityDTO `json:"activities"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int64         `json:"total_count"`
}

func ToProjectDTO(project models.Project, role models.ProjectRole) ProjectDTO {
	return ProjectDTO{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		OwnerID:     project.OwnerID,
		Owner:       userRef(&project.Owner),
		YourRole:    role,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

func ToProjectList(projects []services.ProjectWithRole) []ProjectDTO {
	out := make([]ProjectDTO, 0, len(projects))
	for _, p := range projects {
		out = append(out, ToProjectDTO(p.Project, p.Role))
	}
	return out
}

func ToProjectMemberDTO(member models.ProjectMember) ProjectMemberDTO {
	return ProjectMemberDTO{
		UserID:    member.UserID,
		Role:      member.Role,
		Status:    member.Status,
		InvitedBy: member.InvitedBy,
		JoinedAt:  member.JoinedAt,
		User:      userRef(&member.User),
	}
}

func ToProjectMembers(members []models.ProjectMember) []ProjectMemberDTO {
	out := make([]ProjectMemberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, ToProjectMemberDTO(m))
	}
	return out
}

func ToProjectDetailDTO(detail *services.ProjectDetail) ProjectDetailDTO {
	return ProjectDetailDTO{
		ProjectDTO: ToProjectDTO(*detail.Project, detail.Role),
		Members:    ToProjectMembers(detail.Members),
	}
}

func ToProjectInvitations(members []models.ProjectMember) []ProjectInvitationDTO {
	out := make([]ProjectInvitationDTO, 0, len(members))
	for _, m := range members {
		out = append(out, ProjectInvitationDTO{
			Project:   ToProjectDTO(m.Project, ""),
			Role:      m.Role,
			InvitedBy: m.InvitedBy,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

func ToProjectReportDTO(report *services.ProjectReport) ProjectReportDTO {
	return ProjectReportDTO{
		Total:          report.Total,
		ByStatus:       report.ByStatus,
		ByPriority:     report.ByPriority,
		Overdue:        report.Overdue,
		Unassigned:     report.Unassigned,
		OpenByAssignee: report.OpenByAssign,
		CompletionRate: report.CompletionRate,
	}
}

func ToActivityDTO(activity models.Activity) ActivityDTO {
	return ActivityDTO{
		ID:        activity.ID,
		ProjectID: activity.ProjectID,
		TaskID:    activity.TaskID,
		Type:      activity.Type,
		Message:   activity.Message,
		Metadata:  activity.Metadata,
		User:      userRef(&activity.User),
		CreatedAt: activity.CreatedAt,
	}
}

func ToActivityList(activities []models.Activity, page, pageSize int, total int64) ActivityListResponse {
	out := make([]ActivityDTO, 0, len(activities))
	for _, a := range activities {
		out = append(out, ToActivityDTO(a))
	}
	return ActivityListResponse{
		Activities: out,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}
}
