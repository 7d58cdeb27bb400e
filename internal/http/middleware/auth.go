// README: Firebase ID-token auth middleware and caller accessors.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tenkap/internal/infra"
)

const (
	ctxKeyUID    = "auth.uid"
	ctxKeyClaims = "auth.claims"
)

// Auth rejects requests without a valid "Authorization: Bearer <token>"
// header and stores the caller's UID and claims on the context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxKeyUID, token.UID)
		c.Set(ctxKeyClaims, token.Claims)
		c.Next()
	}
}

// CallerUID returns the authenticated UID, or "" when auth is disabled.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxKeyUID)
}

// CallerClaim returns a string custom claim of the caller.
func CallerClaim(c *gin.Context, name string) string {
	v, ok := c.Get(ctxKeyClaims)
	if !ok {
		return ""
	}
	claims, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := claims[name].(string)
	return s
}
