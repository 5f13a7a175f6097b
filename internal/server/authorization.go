package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pioneer/internal/auth"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	caller, ok := auth.CallerFromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), caller.Actor(), caller.Role, strings.TrimSpace(object), strings.TrimSpace(action))
}

func callerFromContext(c *gin.Context) (auth.Caller, error) {
	caller, ok := auth.CallerFromContext(c.Request.Context())
	if !ok {
		return auth.Caller{}, ErrUnauthorized
	}
	return caller, nil
}
