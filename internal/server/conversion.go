package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pioneer/internal/audit/domain"
	conversiondomain "github.com/smallbiznis/pioneer/internal/conversion/domain"
)

func (s *Server) ConfirmConversion(c *gin.Context) {
	var req conversiondomain.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.conversionSvc.Confirm(c.Request.Context(), conversiondomain.ConfirmRequest{
		RegistrationID: strings.TrimSpace(req.RegistrationID),
		InviteID:       strings.TrimSpace(req.InviteID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionConversionConfirm, "registration", resp.RegistrationID, map[string]any{
		"invitation_id":    resp.InvitationID,
		"rewarded_user_id": resp.RewardedUserID,
		"points":           resp.Points,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": resp.Message,
	})
}

func isConversionValidationError(err error) bool {
	switch err {
	case conversiondomain.ErrInvalidRegistration:
		return true
	default:
		return false
	}
}
