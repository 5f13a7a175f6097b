package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pioneer/internal/audit/domain"
	"github.com/smallbiznis/pioneer/internal/authorization"
)

// RegisterSchedulerRoutes exposes a manual campaign run for operators. Off
// unless SCHEDULER_DEV_TRIGGER is set.
func (s *Server) RegisterSchedulerRoutes() {
	if !s.cfg.Scheduler.DevTrigger {
		return
	}

	internal := s.engine.Group("/internal/scheduler")
	internal.Use(s.AuthRequired())
	internal.POST("/run-once", s.authorize(authorization.ObjectScheduler, authorization.ActionSchedulerRun), s.RunSchedulerOnce)
}

func (s *Server) RunSchedulerOnce(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	err := s.scheduler.RunOnce(c.Request.Context())
	s.recordAudit(c, auditdomain.ActionSchedulerRun, "scheduler", "run-once", map[string]any{
		"ok": err == nil,
	})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"message": "scheduler run completed with errors",
			"errors":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "scheduler run completed successfully",
	})
}
