package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"safemaint-backend/internal/auth"
	"safemaint-backend/internal/model"
)

const (
	sessionKey = "session"
	// SessionCookie carries the login token for browser clients.
	SessionCookie = "safemaint_session"
)

// Authenticator resolves a login token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Session, error)
}

// Token extracts the login token from the Authorization header, the
// session cookie, or the token query parameter (EventSource cannot set
// headers).
func Token(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// RequireAuth rejects requests without a valid session.
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := a.Authenticate(c.Request.Context(), Token(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireRole rejects sessions whose role is not listed.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := CurrentSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		for _, r := range roles {
			if sess.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// CurrentSession returns the session stored by RequireAuth.
func CurrentSession(c *gin.Context) (auth.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return auth.Session{}, false
	}
	sess, ok := v.(auth.Session)
	return sess, ok
}
