package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenVerifier checks a raw bearer token and returns its subject.
type TokenVerifier interface {
	VerifyToken(raw string) (subject string, ok bool)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// verified subject under "sub" in the gin context. The subject is trusted as
// issued; the credential store is not consulted.
func AuthMiddleware(ver TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			unauthorized(c, "not authenticated")
			return
		}
		scheme, token, found := strings.Cut(auth, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			unauthorized(c, "invalid Authorization header")
			return
		}
		sub, ok := ver.VerifyToken(strings.TrimSpace(token))
		if !ok {
			unauthorized(c, "could not validate credentials")
			return
		}
		c.Set("sub", sub)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
