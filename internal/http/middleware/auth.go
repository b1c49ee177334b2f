package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	sessionjwt "github.com/socialimageapp/authentication-api-service/internal/jwt"
)

const (
	sessionClaimsKey = "sessionClaims"
	userIDKey        = "userID"

	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session_token"
)

// Auth validates session tokens from the Authorization header or the
// session cookie and attaches the caller's identity.
type Auth struct {
	JWT *sessionjwt.Generator
}

// RequireSession ensures the request carries a valid session token.
func (m *Auth) RequireSession(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		if cookie, err := c.Cookie(SessionCookie); err == nil {
			token = cookie
		}
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	std, claims, err := m.JWT.Validate(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid session token."})
		return
	}
	userID, err := sessionjwt.Subject(std)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid session token."})
		return
	}

	c.Set(sessionClaimsKey, claims)
	c.Set(userIDKey, userID)
	c.Next()
}

// GetUserID returns the authenticated user id set by RequireSession.
func GetUserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok
}

// GetSessionClaims exposes the custom session claims to handlers.
func GetSessionClaims(c *gin.Context) (*sessionjwt.SessionClaims, bool) {
	value, ok := c.Get(sessionClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*sessionjwt.SessionClaims)
	return claims, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
