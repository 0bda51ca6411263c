// Package auth extracts the request principal set by the fronting auth
// layer and gates the API with an optional static key.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-Key"
	emailHeader  = "X-User-Email"
	roleHeader   = "X-User-Role"

	principalKey = "auth.principal"
)

const (
	RoleOrganizer = "organizer"
	RoleAttendee  = "attendee"
)

// Principal identifies the caller for the duration of one request.
type Principal struct {
	Email string
	Role  string
}

// APIKeyMiddleware validates the API key from the X-API-Key header.
// If apiKey is empty, authentication is disabled.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(apiKeyHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

// PrincipalMiddleware reads the identity headers stamped by the fronting
// auth layer and rejects requests without them. The service never sees
// credentials, only the already-verified identity.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(strings.ToLower(c.GetHeader(emailHeader)))
		role := strings.TrimSpace(strings.ToLower(c.GetHeader(roleHeader)))

		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing user identity",
			})
			return
		}
		if role != RoleOrganizer && role != RoleAttendee {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unknown role",
			})
			return
		}

		c.Set(principalKey, Principal{Email: email, Role: role})
		c.Next()
	}
}

// RequireRole rejects requests whose principal carries a different role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := FromContext(c)
		if !ok || p.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient role",
			})
			return
		}
		c.Next()
	}
}

// FromContext returns the principal stored by PrincipalMiddleware.
func FromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
