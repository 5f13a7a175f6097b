package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	engagementdomain "github.com/smallbiznis/pioneer/internal/engagement/domain"
	"go.uber.org/zap"
)

// HandleEngagementWebhook applies an ESP open, click or bounce event. Unknown
// events and unmatched recipients still answer 200 so the ESP stops retrying.
func (s *Server) HandleEngagementWebhook(c *gin.Context) {
	var event engagementdomain.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_payload", "invalid JSON payload"))
		return
	}

	result, err := s.engagementSvc.Handle(c.Request.Context(), event)
	if err != nil {
		if !errors.Is(err, engagementdomain.ErrMissingEmail) {
			s.log.Error("webhook event failed",
				zap.String("event", event.Event),
				zap.Error(err),
			)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"outcome": result.Outcome,
	})
}

func isEngagementValidationError(err error) bool {
	switch err {
	case engagementdomain.ErrMissingEmail:
		return true
	default:
		return false
	}
}
