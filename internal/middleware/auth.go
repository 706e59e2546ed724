package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
)

// TokenVerifier validates a bearer token and returns the subject user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthMiddleware resolves the caller identity before any handler runs:
// missing or invalid tokens fail with 401, a token whose subject no longer
// exists fails with 404. On success the user id lands in the request context
// and the user's last-seen stamp is refreshed.
func AuthMiddleware(tokens TokenVerifier, userRepo repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication token is missing"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication token is missing"})
			return
		}

		userID, err := tokens.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if _, err := userRepo.GetUser(c.Request.Context(), userID); err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		if err := userRepo.TouchLastSeen(c.Request.Context(), userID); err != nil {
			log.Printf("touch last seen for %s: %v", userID, err)
		}

		c.Set("userID", userID)
		c.Next()
	}
}
