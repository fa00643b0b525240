package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/memeet/scheduler/internal/utils"
	"github.com/memeet/scheduler/pkg/response"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// UserChecker confirms that the subject of a valid token still exists.
type UserChecker interface {
	IsActiveUser(userID uint) (bool, error)
}

// AuthRequired resolves the bearer token into the caller's identity. The token
// may also arrive as a "token" query parameter for EventSource clients, which
// cannot set headers. A nil checker trusts the token claims alone.
func AuthRequired(checker UserChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := extractToken(c)
		if tokenString == "" {
			response.AbortUnauthorized(c, msg)
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			response.AbortUnauthorized(c, "not authorized, token failed")
			return
		}

		if checker != nil {
			active, err := checker.IsActiveUser(claims.UserID)
			if err != nil || !active {
				response.AbortUnauthorized(c, "not authorized, user not found")
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

func extractToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, ""
		}
		return "", "not authorized, no token"
	}

	// "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", "invalid authorization header format"
	}
	return strings.TrimSpace(parts[1]), ""
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}

func GetEmail(c *gin.Context) string {
	if email, exists := c.Get(ContextEmail); exists {
		if v, ok := email.(string); ok {
			return v
		}
	}
	return ""
}

func GetRole(c *gin.Context) string {
	if role, exists := c.Get(ContextRole); exists {
		if v, ok := role.(string); ok {
			return v
		}
	}
	return ""
}
