package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/tasko/internal/constants"
	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/services"
	"github.com/yukikurage/tasko/internal/utils"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List returns the caller's notifications, newest first. ?unread=true
// restricts the page to unread ones.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))
	params := utils.GetPaginationParams(c)

	notifications, total, err := h.notificationService.List(c.Request.Context(), userID, unreadOnly, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToNotificationList(notifications, params, total))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	notificationID, ok := pathID(c, "id", "notification ID")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": notificationID, "read": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

type InboxHandler struct {
	inboxService *services.InboxService
}

func NewInboxHandler(inboxService *services.InboxService) *InboxHandler {
	return &InboxHandler{inboxService: inboxService}
}

// CreateConversation starts a conversation between the caller and the
// listed users
func (h *InboxHandler) CreateConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	type CreateConversationRequest struct {
		ParticipantIDs []uint64 `json:"participant_ids" binding:"required"`
		Title          string   `json:"title" binding:"max=255"`
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	conv, err := h.inboxService.CreateConversation(c.Request.Context(), userID, req.ParticipantIDs, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToConversationDTO(*conv))
}

func (h *InboxHandler) ListConversations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	convs, err := h.inboxService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": dto.ToConversations(convs)})
}

// ListMessages returns up to ?limit messages older than ?before_id, oldest
// first. Fetching the latest page marks the conversation read.
func (h *InboxHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "id", "conversation ID")
	if !ok {
		return
	}

	before, err := queryID(c, "before_id")
	if err != nil {
		respondError(c, err)
		return
	}
	var beforeID uint64
	if before != nil {
		beforeID = *before
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultPageSize)))
	if err != nil || limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	messages, err := h.inboxService.ListMessages(c.Request.Context(), convID, userID, beforeID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": dto.ToMessages(messages)})
}

func (h *InboxHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "id", "conversation ID")
	if !ok {
		return
	}

	type SendMessageRequest struct {
		Content string `json:"content" binding:"required"`
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	message, err := h.inboxService.SendMessage(c.Request.Context(), convID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToMessageDTO(*message))
}
