package constants

import "time"

// Session and context keys
const (
	SessionCookieName       = "task_session"
	SessionMaxAge           = 7 * 24 * time.Hour
	ContextKeyUserID        = "user_id"
	ContextKeyRequestLogger = "request_logger"
)

// Auth
const (
	MinPasswordLength = 8
	AccessTokenTTL    = 24 * time.Hour
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Uploads
const (
	MaxAvatarBytes = 2 << 20
	AvatarPrefix   = "avatars"
)

// AI task suggestions
const (
	MaxAIGeneratedTasks = 20
)

// Rate limiting
const (
	AuthRateWindow = time.Minute
)
