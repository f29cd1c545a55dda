package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"syntra-settlement/internal/utils"
)

const UserIDContextKey = "user_id"

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// JWTAuth rejects requests without a valid bearer token and stores the
// token's user id in the context.
func JWTAuth(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing or malformed authorization header",
			})
			return
		}

		claims, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set(UserIDContextKey, claims.UserId)
		c.Next()
	}
}

// OptionalJWTAuth identifies the user when a valid token is present and
// lets guests through otherwise.
func OptionalJWTAuth(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := tokens.ParseToken(token); err == nil {
				c.Set(UserIDContextKey, claims.UserId)
			}
		}
		c.Next()
	}
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	v, exists := c.Get(UserIDContextKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
