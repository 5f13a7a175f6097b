package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/pioneer/internal/notification/domain"
)

func (s *Server) ListNotifications(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query notificationdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), caller.Subject, query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := s.notificationSvc.MarkRead(c.Request.Context(), caller.Subject, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "read": true}})
}

func isNotificationValidationError(err error) bool {
	switch err {
	case notificationdomain.ErrInvalidID,
		notificationdomain.ErrInvalidUser,
		notificationdomain.ErrInvalidType:
		return true
	default:
		return false
	}
}
