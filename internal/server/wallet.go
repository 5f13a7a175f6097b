package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	walletdomain "github.com/smallbiznis/pioneer/internal/wallet/domain"
)

func (s *Server) GetWallet(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	wallet, err := s.walletSvc.Get(c.Request.Context(), caller.Subject)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": wallet})
}

func isWalletValidationError(err error) bool {
	switch err {
	case walletdomain.ErrInvalidUser:
		return true
	default:
		return false
	}
}
