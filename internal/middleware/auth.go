package middleware

import (
	"strings"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userId"
	RoleKey   = "role"
)

func AuthMiddleware(tokens *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// First try to get token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// If not found in header, try query parameter (for WebSocket)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.Error(apperr.Authentication("Authorization header or token query parameter required"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.Error(apperr.Authentication("Invalid token"))
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole lets only users with the given role through. It must run after
// AuthMiddleware.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != string(role) {
			c.Error(apperr.Authorization("Only " + string(role) + "s can do this"))
			c.Abort()
			return
		}
		c.Next()
	}
}
