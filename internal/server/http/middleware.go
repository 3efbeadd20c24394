package http

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// bearer returns the access token from the Authorization header, falling
// back to the access token cookie.
func (s *HTTPServer) bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return s.cookies.Get(c, common.AccessTokenCookieName)
}

// guard rejects the request unless it carries a valid access token, and
// stores the resolved identity on the context.
func (s *HTTPServer) guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.users.Authenticate(c.Request.Context(), s.bearer(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set(identityKey, user)
		c.Next()
	}
}

func identity(c *gin.Context) *models.PublicUser {
	u, _ := c.Get(identityKey)
	user, _ := u.(*models.PublicUser)
	return user
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info(context.WithoutCancel(c.Request.Context()), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
