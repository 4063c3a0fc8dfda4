package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireSharedSecret guards server-to-server endpoints with the same
// x-shared-secret scheme the voice-platform surfaces use. A Bearer
// prefix is tolerated. An empty configured secret rejects everything:
// these endpoints mutate billing counters and must never be open.
func RequireSharedSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("x-shared-secret"), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
