package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trailhead/api/internal/security"
	"trailhead/api/internal/service"
)

const (
	currentUserKey  = "current_user"
	accessClaimsKey = "access_claims"
)

// Auth guards protected routes. It verifies the bearer token, then
// checks the live user record: the account must still exist, be
// active, not be locked out, and not have changed its password after
// the token was issued.
func Auth(tokens *security.TokenService, directory service.UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		user, err := directory.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}

		if !user.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_inactive"})
			return
		}

		now := time.Now()
		if user.IsLocked(now) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_locked"})
			return
		}

		if claims.IssuedAt == nil || user.PasswordChangedAfter(claims.IssuedAt.Time) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "password_changed"})
			return
		}

		c.Set(accessClaimsKey, *claims)
		c.Set(currentUserKey, user)

		c.Next()
	}
}
