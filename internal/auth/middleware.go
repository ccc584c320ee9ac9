package auth

import (
	"net/http"
	"strings"

	"playmatch/lobby/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// ContextUsername is the gin context key holding the authenticated username.
const ContextUsername = "username"

func bearerUsername(c *gin.Context, secret string) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	username, err := jwt.ParseToken(secret, parts[1])
	if err != nil {
		return "", false
	}
	return username, true
}

// AuthMiddleware rejects requests without a valid bearer token issued at
// lobby login.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := bearerUsername(c, secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Valid bearer token required"})
			return
		}
		c.Set(ContextUsername, username)
		c.Next()
	}
}

// OptionalAuthMiddleware inspects for a token and sets the username if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, ok := bearerUsername(c, secret); ok {
			c.Set(ContextUsername, username)
		}
		c.Next()
	}
}
