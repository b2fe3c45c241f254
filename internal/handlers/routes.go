package handlers

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler served under /api.
type Handlers struct {
	Auth          *AuthHandler
	Projects      *ProjectHandler
	Tasks         *TaskHandler
	Teams         *TeamHandler
	Notifications *NotificationHandler
	Inbox         *InboxHandler
	Realtime      *RealtimeHandler
}

// RegisterRoutes mounts the API. requireAuth guards everything except
// signup, login and logout; authLimit throttles the credential endpoints.
func RegisterRoutes(r *gin.Engine, h Handlers, requireAuth, authLimit gin.HandlerFunc) {
	api := r.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	{
		auth.POST("/signup", authLimit, h.Auth.Signup)
		auth.POST("/login", authLimit, h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", requireAuth, h.Auth.GetCurrentUser)
		auth.PATCH("/me", requireAuth, h.Auth.UpdateProfile)
		auth.POST("/me/avatar", requireAuth, h.Auth.UploadAvatar)
	}

	// Project routes
	projects := api.Group("/projects")
	projects.Use(requireAuth)
	{
		projects.POST("", h.Projects.CreateProject)
		projects.GET("", h.Projects.ListProjects)
		projects.GET("/:id", h.Projects.GetProject)
		projects.PATCH("/:id", h.Projects.UpdateProject)
		projects.DELETE("/:id", h.Projects.DeleteProject)

		projects.GET("/:id/members", h.Projects.ListMembers)
		projects.POST("/:id/members", h.Projects.InviteMember)
		projects.PATCH("/:id/members/:user_id", h.Projects.UpdateMemberRole)
		projects.DELETE("/:id/members/:user_id", h.Projects.RemoveMember)
		projects.POST("/:id/invitation", h.Projects.RespondToInvitation)

		projects.GET("/:id/reports", h.Projects.Report)
		projects.GET("/:id/activities", h.Projects.Activities)

		projects.GET("/:id/tasks", h.Tasks.ListTasks)
		projects.POST("/:id/tasks", h.Tasks.CreateTask)
		projects.POST("/:id/tasks/suggest", h.Tasks.SuggestTasks)
		projects.GET("/:id/board", h.Tasks.Board)
	}

	// Task routes
	tasks := api.Group("/tasks")
	tasks.Use(requireAuth)
	{
		tasks.GET("/:id", h.Tasks.GetTask)
		tasks.PATCH("/:id", h.Tasks.UpdateTask)
		tasks.DELETE("/:id", h.Tasks.DeleteTask)
		tasks.POST("/:id/status", h.Tasks.ChangeStatus)
	}

	// Team routes
	teams := api.Group("/teams")
	teams.Use(requireAuth)
	{
		teams.POST("", h.Teams.CreateTeam)
		teams.GET("", h.Teams.ListTeams)
		teams.GET("/:id", h.Teams.GetTeam)
		teams.PATCH("/:id", h.Teams.UpdateTeam)
		teams.DELETE("/:id", h.Teams.DeleteTeam)
		teams.POST("/:id/invitations", h.Teams.InviteMember)
		teams.POST("/:id/members", h.Teams.AddMember)
		teams.PATCH("/:id/members/:user_id", h.Teams.UpdateMemberRole)
		teams.DELETE("/:id/members/:user_id", h.Teams.RemoveMember)
	}

	invitations := api.Group("/invitations")
	invitations.Use(requireAuth)
	{
		invitations.GET("", h.Teams.ListInvitations)
		invitations.POST("/:id/respond", h.Teams.RespondToInvitation)
	}

	notifications := api.Group("/notifications")
	notifications.Use(requireAuth)
	{
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.POST("/read-all", h.Notifications.MarkAllRead)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
	}

	conversations := api.Group("/conversations")
	conversations.Use(requireAuth)
	{
		conversations.POST("", h.Inbox.CreateConversation)
		conversations.GET("", h.Inbox.ListConversations)
		conversations.GET("/:id/messages", h.Inbox.ListMessages)
		conversations.POST("/:id/messages", h.Inbox.SendMessage)
	}

	api.GET("/realtime", requireAuth, h.Realtime.Connect)
}
