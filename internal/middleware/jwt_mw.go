package middleware

import (
	"net/http"
	"strings"

	"tax_analysis/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	AuthUserKey     = "authUser"
	AuthRoleKey     = "authRole"
	AuthUsernameKey = "authUsername"
)

// JWTAuthMiddleware creates a middleware for JWT authentication. Every
// token failure gets the same 401 body.
func JWTAuthMiddleware(jwtUtil *utils.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		claims, err := jwtUtil.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		c.Set(AuthUserKey, claims.UserID)
		c.Set(AuthRoleKey, claims.Role)
		c.Set(AuthUsernameKey, claims.Subject)

		c.Next()
	}
}

// AuthUserID returns the account ID set by JWTAuthMiddleware.
func AuthUserID(c *gin.Context) (int, bool) {
	v, exists := c.Get(AuthUserKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
