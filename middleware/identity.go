package middleware

import (
	"github.com/gin-gonic/gin"

	"ragchat-platform/utils"
)

const userIDKey = "userID"

// IdentityMiddleware reads the caller identity from the X-User-ID
// header. Authentication is handled upstream (gateway or reverse
// proxy); this service only scopes data by the forwarded identity.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			utils.RespondWithUnauthorized(c, "X-User-ID header is required")
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the identity set by IdentityMiddleware.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
