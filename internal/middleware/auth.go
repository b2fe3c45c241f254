package middleware

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/tasko/internal/constants"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/utils"
)

// RequireAuth resolves the caller from the session cookie, falling back to
// an "Authorization: Bearer" access token. Nothing is cached between requests.
func RequireAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := sessionUserID(c); ok {
			c.Set(constants.ContextKeyUserID, userID)
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		claims, err := utils.ParseAccessToken(token, jwtSecret)
		if err != nil {
			apierrors.Unauthorized(c, "Invalid or expired access token")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

func sessionUserID(c *gin.Context) (uint64, bool) {
	session := sessions.Default(c)
	userID := session.Get(constants.ContextKeyUserID)
	if userID == nil {
		return 0, false
	}
	return toUint64(userID)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return toUint64(userID)
}

func toUint64(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		// Some session codecs decode numbers as int64
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
