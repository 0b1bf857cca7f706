package middleware

import (
	"net/http"
	"strings"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/auth"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware is the bearer-token "security guard" for protected routes.
// It always runs before any business logic: a missing, malformed, or
// unverifiable credential is a 401, full stop. On success it puts the
// resolved user ID into the gin context, so handlers never trust a
// client-supplied identity.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			c.Abort()
			return
		}
		tokenString := parts[1]

		// 2. --- Validate Token ---
		userID, err := auth.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// 3. --- Success ---
		c.Set("userID", userID)
		c.Next()
	}
}
