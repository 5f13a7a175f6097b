package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pioneer/internal/audit/domain"
	"github.com/smallbiznis/pioneer/internal/auth"
	obscontext "github.com/smallbiznis/pioneer/internal/observability/context"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const HeaderWebhookToken = "X-Webhook-Token"

// AuthRequired resolves the bearer token into a caller on the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifier == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		caller, err := s.verifier.Verify(c.Request)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actorType := "user"
		if caller.Role == auth.RoleSystem {
			actorType = "system"
		}
		ctx := auth.WithCaller(c.Request.Context(), caller)
		ctx = obscontext.WithActor(ctx, actorType, caller.Subject)
		ctx = auditdomain.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WebhookTokenRequired checks the shared ESP token when a hash is configured.
func (s *Server) WebhookTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := obscontext.WithActor(c.Request.Context(), "webhook", "esp")
		ctx = auditdomain.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		hash := strings.TrimSpace(s.cfg.Webhook.TokenHash)
		if hash == "" {
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader(HeaderWebhookToken))
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			s.log.Warn("webhook token rejected", zap.String("client_ip", c.ClientIP()))
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
