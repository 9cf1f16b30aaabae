package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "auth.identity"

// Optional extracts a bearer identity when present; anonymous requests pass
// through with no identity set. Invalid tokens are rejected rather than
// downgraded to anonymous.
func Optional(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			c.Next()
			return
		}
		id, err := v.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Required rejects requests without a valid bearer identity.
func Required(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		id, err := v.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireOperatorRole rejects identities outside the operator allow-list.
// Must run after Required.
func RequireOperatorRole(operatorRoles []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := FromContext(c)
		if err := RequireOperator(id, operatorRoles); err != nil {
			status := http.StatusForbidden
			msg := "operator role required"
			if id == nil {
				status = http.StatusUnauthorized
				msg = "authentication required"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}

// FromContext returns the request identity, or nil for anonymous callers.
func FromContext(c *gin.Context) *Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		// WebSocket clients can't set headers from browsers; accept ?token=.
		return r.URL.Query().Get("token")
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
