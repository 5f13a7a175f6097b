package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pioneer/internal/referral"
)

func (s *Server) GetReferralLink(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	link, err := s.links.Referrer(caller.Subject, caller.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"link": link}})
}

func (s *Server) GetReferralQRCode(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	size := referral.DefaultQRSize
	if raw := strings.TrimSpace(c.Query("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("size", "invalid_size", "invalid size"))
			return
		}
		size = parsed
	}

	link, err := s.links.Referrer(caller.Subject, caller.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	png, err := referral.QRCode(link, size)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
