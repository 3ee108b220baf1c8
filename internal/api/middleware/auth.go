package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"enoriel/autos/internal/auth"
)

const (
	// ContextKeyAdminUser holds the signed-in operator's username.
	ContextKeyAdminUser = "adminUser"
	// ContextKeyIsAdmin skips the soft rate limit bucket.
	ContextKeyIsAdmin = "isAdmin"
)

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AdminAuthMiddleware guards the back-office JSON API. Tokens come from
// POST /v1/admin/login and must carry the admin claim.
func AdminAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired admin session"})
			return
		}
		if !claims.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Back-office access required"})
			return
		}

		c.Set(ContextKeyAdminUser, claims.Username)
		c.Set(ContextKeyIsAdmin, true)
		c.Next()
	}
}

// AdminUsername returns the operator behind the request, or "" outside the admin group.
func AdminUsername(c *gin.Context) string {
	return c.GetString(ContextKeyAdminUser)
}
