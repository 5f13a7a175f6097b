package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pioneer/internal/audit/domain"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	"github.com/smallbiznis/pioneer/pkg/db/pagination"
)

type issueInvitationsRequest struct {
	Friends      []invitationdomain.Friend `json:"friends"`
	ReferrerName string                    `json:"referrerName"`
	ReferrerID   string                    `json:"referrerId"`
}

func (s *Server) IssueInvitations(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req issueInvitationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// referrerId is informational; the token subject is the only accepted identity.
	if id := strings.TrimSpace(req.ReferrerID); id != "" && id != caller.Subject {
		AbortWithError(c, ErrForbidden)
		return
	}

	resp, err := s.invitationSvc.Issue(c.Request.Context(), invitationdomain.IssueRequest{
		ReferrerName: strings.TrimSpace(req.ReferrerName),
		Friends:      req.Friends,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	recipients := make([]string, 0, len(req.Friends))
	for _, friend := range req.Friends {
		recipients = append(recipients, friend.Email)
	}
	s.recordAudit(c, auditdomain.ActionInvitationIssue, "referrer", caller.Subject, map[string]any{
		"count":      resp.Count,
		"sent":       resp.Sent,
		"failed":     resp.Failed,
		"recipients": recipients,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   resp.Count,
		"sent":    resp.Sent,
		"failed":  resp.Failed,
	})
}

func (s *Server) ListInvitations(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invitationSvc.ListMine(c.Request.Context(), invitationdomain.ListRequest{
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isInvitationValidationError(err error) bool {
	switch err {
	case invitationdomain.ErrInvalidFriends,
		invitationdomain.ErrInvalidEmail,
		invitationdomain.ErrInvalidName:
		return true
	default:
		return false
	}
}
