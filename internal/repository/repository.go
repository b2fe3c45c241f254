package repository

import (
	"context"
	"time"

	"github.com/yukikurage/tasko/internal/models"
)

// Store groups the repositories and lets callers run several writes in one
// database transaction.
type Store interface {
	Users() UserRepository
	Projects() ProjectRepository
	Teams() TeamRepository
	Tasks() TaskRepository
	Notifications() NotificationRepository
	Activities() ActivityRepository
	Conversations() ConversationRepository

	// Transaction runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email, ignoring case
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByIDs returns the users that exist among ids
	FindByIDs(ctx context.Context, ids []uint64) ([]models.User, error)

	// Update updates a user
	Update(ctx context.Context, user *models.User) error
}

// ProjectRepository defines the interface for project and membership data access
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id uint64) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error

	// Delete deletes a project with its tasks, memberships and activity, and
	// unlinks its teams
	Delete(ctx context.Context, id uint64) error

	// ListForUser lists accepted memberships of a user with their projects
	ListForUser(ctx context.Context, userID uint64) ([]models.ProjectMember, error)

	// ListInvitationsForUser lists pending memberships of a user with their projects
	ListInvitationsForUser(ctx context.Context, userID uint64) ([]models.ProjectMember, error)

	AddMember(ctx context.Context, member *models.ProjectMember) error
	FindMember(ctx context.Context, projectID, userID uint64) (*models.ProjectMember, error)
	UpdateMember(ctx context.Context, member *models.ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID uint64) error

	// ListMembers lists all memberships of a project, pending included
	ListMembers(ctx context.Context, projectID uint64) ([]models.ProjectMember, error)
}

// TeamRepository defines the interface for team, team membership and invitation data access
type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	FindByID(ctx context.Context, id uint64) (*models.Team, error)
	Update(ctx context.Context, team *models.Team) error

	// Delete deletes a team with its memberships and invitations and detaches its tasks
	Delete(ctx context.Context, id uint64) error

	// ListForUser lists memberships of a user with their teams
	ListForUser(ctx context.Context, userID uint64) ([]models.TeamMember, error)

	// TeamIDsForUser returns the ids of the teams linked to projectID that
	// the user belongs to
	TeamIDsForUser(ctx context.Context, userID, projectID uint64) ([]uint64, error)

	AddMembers(ctx context.Context, members []models.TeamMember) error
	FindMember(ctx context.Context, teamID, userID uint64) (*models.TeamMember, error)
	UpdateMember(ctx context.Context, member *models.TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID uint64) error
	ListMembers(ctx context.Context, teamID uint64) ([]models.TeamMember, error)

	CreateInvitations(ctx context.Context, invitations []models.TeamInvitation) error

	// FindPendingInvitation finds a pending invitation by id addressed to email, ignoring case
	FindPendingInvitation(ctx context.Context, id uint64, email string) (*models.TeamInvitation, error)

	UpdateInvitation(ctx context.Context, invitation *models.TeamInvitation) error

	// ListPendingInvitations lists pending invitations addressed to email, ignoring case
	ListPendingInvitations(ctx context.Context, email string) ([]models.TeamInvitation, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectID  uint64
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssignedTo *uint64
	TeamID     *uint64
	Search     string
	Sort       TaskSort
	Page       int
	PageSize   int
}

// TaskSort selects the ordering of task lists
type TaskSort string

const (
	SortByCreatedAt TaskSort = "created_at"
	SortByDueDate   TaskSort = "due_date"
	SortByPriority  TaskSort = "priority"
)

// TaskStats aggregates task counts for project reports
type TaskStats struct {
	Total        int64
	ByStatus     map[models.TaskStatus]int64
	ByPriority   map[models.TaskPriority]int64
	Overdue      int64
	OpenByAssign map[uint64]int64
	Unassigned   int64
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination. A zero PageSize returns every match.
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	Update(ctx context.Context, task *models.Task) error

	// Delete soft deletes a task
	Delete(ctx context.Context, id uint64) error

	// Stats aggregates the tasks of a project; tasks due before now and not completed are overdue
	Stats(ctx context.Context, projectID uint64, now time.Time) (*TaskStats, error)
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error

	// FindForUser finds a notification owned by userID
	FindForUser(ctx context.Context, id, userID uint64) (*models.Notification, error)

	// List lists a user's notifications, newest first
	List(ctx context.Context, userID uint64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error)

	CountUnread(ctx context.Context, userID uint64) (int64, error)

	// MarkRead sets the read flag of one notification
	MarkRead(ctx context.Context, id uint64) error

	// MarkAllRead sets the read flag of every unread notification of a user
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
}

// ActivityRepository defines the interface for the append-only activity log
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	ListByProject(ctx context.Context, projectID uint64, page, pageSize int) ([]models.Activity, int64, error)
}

// ConversationRepository defines the interface for inbox conversations and messages
type ConversationRepository interface {
	// Create creates a conversation and one participant row per user id
	Create(ctx context.Context, conversation *models.Conversation, participantIDs []uint64) error

	FindByID(ctx context.Context, id uint64) (*models.Conversation, error)

	// ListForUser lists conversations the user participates in, most recently active first
	ListForUser(ctx context.Context, userID uint64) ([]models.Conversation, error)

	FindParticipant(ctx context.Context, conversationID, userID uint64) (*models.ConversationParticipant, error)
	ParticipantIDs(ctx context.Context, conversationID uint64) ([]uint64, error)

	// AddMessage stores a message and bumps the conversation's activity time
	AddMessage(ctx context.Context, message *models.Message) error

	// ListMessages lists messages oldest first; beforeID > 0 pages backwards
	ListMessages(ctx context.Context, conversationID, beforeID uint64, limit int) ([]models.Message, error)

	MarkRead(ctx context.Context, conversationID, userID uint64, at time.Time) error
}
