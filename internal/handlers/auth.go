package handlers

import (
	"io"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/tasko/internal/constants"
	"github.com/yukikurage/tasko/internal/dto"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Signup registers a new user.
func (h *AuthHandler) Signup(c *gin.Context) {
	type SignupRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name" binding:"max=255"`
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), services.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// Login authenticates a user, initializes the session and issues a bearer
// token for non-browser clients.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(constants.ContextKeyUserID, user.ID)
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		User:        dto.ToUserDTO(*user),
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// UpdateProfile changes the caller's display name or password.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	type UpdateProfileRequest struct {
		FullName *string `json:"full_name" binding:"omitempty,max=255"`
		Password *string `json:"password"`
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, services.UpdateProfileInput{
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// UploadAvatar stores the multipart "avatar" image and points the profile at it.
func (h *AuthHandler) UploadAvatar(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	header, err := c.FormFile("avatar")
	if err != nil {
		apierrors.BadRequest(c, "Missing avatar file")
		return
	}
	if header.Size > constants.MaxAvatarBytes {
		respondError(c, services.ErrAvatarTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		apierrors.BadRequest(c, "Unreadable avatar file")
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the service to reject it
	data, err := io.ReadAll(io.LimitReader(file, constants.MaxAvatarBytes+1))
	if err != nil {
		apierrors.BadRequest(c, "Unreadable avatar file")
		return
	}

	user, err := h.authService.UploadAvatar(c.Request.Context(), userID, data)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}
