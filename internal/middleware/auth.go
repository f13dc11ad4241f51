package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storeadmin/api/internal/models"
	"storeadmin/api/internal/security"
	"storeadmin/api/internal/service"
)

const (
	ctxUser    = "current_user"
	ctxClaims  = "access_claims"
	ctxToken   = "access_token"
	ctxSession = "current_session"

	SessionTokenHeader = "X-Session-Token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (models.User, *security.AccessClaims, error)
}

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (models.Session, bool, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or ""
// when the header is absent or malformed.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Auth resolves the bearer token to an active user. When sessions is non-nil
// and an X-Session-Token is sent, it must belong to that user and still be live.
func Auth(auth Authenticator, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		user, claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		if sessionToken := c.GetHeader(SessionTokenHeader); sessionToken != "" && sessions != nil {
			session, ok, err := sessions.ValidateSession(c.Request.Context(), sessionToken)
			if err != nil {
				abortWithError(c, err)
				return
			}
			if !ok || session.UserID != user.ID {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
				return
			}
			c.Set(ctxSession, session)
		}

		c.Set(ctxToken, token)
		c.Set(ctxClaims, *claims)
		c.Set(ctxUser, user)

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(ctxUser)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

func CurrentSession(c *gin.Context) (models.Session, bool) {
	val, exists := c.Get(ctxSession)
	if !exists {
		return models.Session{}, false
	}
	session, ok := val.(models.Session)
	return session, ok
}

func AccessToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}

func abortWithError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) && errors.Is(err, service.ErrUnauthorized) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": svcErr.Message})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
}
