package models

import "time"

type ProjectRole string

const (
	ProjectRoleAdmin    ProjectRole = "admin"
	ProjectRoleManager  ProjectRole = "manager"
	ProjectRoleTechLead ProjectRole = "tech_lead"
	ProjectRoleMember   ProjectRole = "member"
	ProjectRoleViewer   ProjectRole = "viewer"
)

// Valid reports whether r is one of the assignable project roles.
func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectRoleAdmin, ProjectRoleManager, ProjectRoleTechLead, ProjectRoleMember, ProjectRoleViewer:
		return true
	}
	return false
}

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipAccepted MembershipStatus = "accepted"
)

type ProjectMember struct {
	ProjectID uint64           `gorm:"primarykey" json:"project_id"`
	UserID    uint64           `gorm:"primarykey" json:"user_id"`
	Role      ProjectRole      `gorm:"type:varchar(20);not null" json:"role"`
	Status    MembershipStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	InvitedBy *uint64          `json:"invited_by,omitempty"`
	JoinedAt  *time.Time       `json:"joined_at"`
	CreatedAt time.Time        `json:"created_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
